package message

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrEmptyPayload is returned by Build when the marshaled payload is empty.
var ErrEmptyPayload = errors.New("message: payload must not be empty")

// Signer funnels every signing operation through a single capability: produce
// a signature over a 32-byte digest. Identity implements this; message never
// imports identity, avoiding a dependency cycle.
type Signer interface {
	SignDigest(digest [32]byte) (Signature, error)
}

// Envelope is the signed message envelope, generic over any radio-supplied
// payload type satisfying Payload. Tags follow the wire format exactly:
// 1 identifier, 2 payload, 3 nonce, 4 network, 5 block_number, 6 block_hash,
// 7 signature. Once signed, an Envelope is treated as immutable by callers;
// nothing in this package mutates a signed Envelope in place.
type Envelope[T Payload] struct {
	Identifier  string
	Payload     T
	Nonce       int64
	Network     string
	BlockNumber uint64
	BlockHash   string
	Signature   Signature
}

// Build constructs and signs an envelope. graphAccount is accepted for
// parity with the caller's authorization context but is not used here and
// is not a wire field — the signed struct hash and the
// wire tags carry only identifier/payload/nonce/network/block_number/
// block_hash/signature, per the envelope's tag table.
func Build[T Payload](signer Signer, domain TypedDomain, identifier, graphAccount string, nonce int64, payload T, network string, blockNumber uint64, blockHash string) (*Envelope[T], error) {
	raw, err := payload.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("message: marshal payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	env := &Envelope[T]{
		Identifier:  identifier,
		Payload:     payload,
		Nonce:       nonce,
		Network:     network,
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
	}

	digest := TypedHash(domain, payload)
	sig, err := signer.SignDigest(digest)
	if err != nil {
		return nil, fmt.Errorf("message: sign envelope: %w", err)
	}
	env.Signature = sig
	return env, nil
}

// RecoverSender reconstructs the typed hash from the envelope's payload and
// domain, recovers the signing address from Signature, and returns it. It
// fails if the signature is malformed or does not recover to a valid point.
func RecoverSender[T Payload](domain TypedDomain, env *Envelope[T]) (Address, error) {
	digest := TypedHash(domain, env.Payload)
	pub, err := crypto.SigToPub(digest[:], env.Signature[:])
	if err != nil {
		return Address{}, fmt.Errorf("message: recover sender: %w", err)
	}
	return FromCommon(crypto.PubkeyToAddress(*pub)), nil
}
