package message_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gossipradio/agent-sdk/message"
	"github.com/gossipradio/agent-sdk/payload/pingpong"
)

func newSigner(t *testing.T) (message.Signer, message.Address) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := message.FromCommon(crypto.PubkeyToAddress(priv.PublicKey))
	return signerFunc(func(digest [32]byte) (message.Signature, error) {
		sig, err := crypto.Sign(digest[:], priv)
		if err != nil {
			return message.Signature{}, err
		}
		var out message.Signature
		copy(out[:], sig)
		return out, nil
	}), addr
}

type signerFunc func(digest [32]byte) (message.Signature, error)

func (f signerFunc) SignDigest(digest [32]byte) (message.Signature, error) { return f(digest) }

func TestSignRecoverRoundTrip(t *testing.T) {
	signer, addr := newSigner(t)
	payload := pingpong.Message{Identifier: "table", Content: "Ping"}

	env, err := message.Build[pingpong.Message](signer, pingpong.Domain, "ping-pong-content-topic", "", 10, payload, "mainnet", 10, "0xabc")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := message.RecoverSender[pingpong.Message](pingpong.Domain, env)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != addr {
		t.Fatalf("recovered %s, want %s", got, addr)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	signer, _ := newSigner(t)
	payload := pingpong.Message{Identifier: "table", Content: "Pong"}

	env, err := message.Build[pingpong.Message](signer, pingpong.Domain, "ping-pong-content-topic", "", 11, payload, "mainnet", 11, "0xdef")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	encoded, err := message.Encode[pingpong.Message](env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := message.Decode[pingpong.Message](encoded, pingpong.Unmarshal)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Identifier != env.Identifier || decoded.Nonce != env.Nonce ||
		decoded.Network != env.Network || decoded.BlockNumber != env.BlockNumber ||
		decoded.BlockHash != env.BlockHash || decoded.Signature != env.Signature ||
		decoded.Payload != env.Payload {
		t.Fatalf("decode(encode(m)) != m: got %+v, want %+v", decoded, env)
	}
}

func TestDecodeSkipsUnknownTags(t *testing.T) {
	signer, _ := newSigner(t)
	payload := pingpong.Message{Identifier: "table", Content: "Ping"}
	env, err := message.Build[pingpong.Message](signer, pingpong.Domain, "t", "", 1, payload, "mainnet", 1, "0x1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	encoded, err := message.Encode[pingpong.Message](env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Append an unknown varint field (tag 99, wire type 0) before decoding.
	// Its key 99<<3|0 = 792 is the two-byte varint 0x98 0x06.
	extra := append([]byte{}, encoded...)
	extra = append(extra, 0x98, 0x06, 0x01)

	if _, err := message.Decode[pingpong.Message](extra, pingpong.Unmarshal); err != nil {
		t.Fatalf("decode with unknown trailing tag: %v", err)
	}
}

func TestBuildRejectsEmptyPayload(t *testing.T) {
	signer, _ := newSigner(t)
	_, err := message.Build[emptyPayload](signer, pingpong.Domain, "t", "", 1, emptyPayload{}, "mainnet", 1, "0x1")
	if err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

type emptyPayload struct{}

func (emptyPayload) TypedFields() []message.TypedField { return nil }
func (emptyPayload) MarshalBinary() ([]byte, error)     { return nil, nil }
