package validation_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gossipradio/agent-sdk/callbook"
	"github.com/gossipradio/agent-sdk/identity"
	"github.com/gossipradio/agent-sdk/message"
	"github.com/gossipradio/agent-sdk/noncestore"
	"github.com/gossipradio/agent-sdk/payload/attestation"
	"github.com/gossipradio/agent-sdk/validation"
)

func blockHashServer(t *testing.T, hash string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"block": {"hash": "` + hash + `"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newSigner builds a throwaway signer so tests never need a real secret;
// identity.Build is exercised separately in identity_test.go.
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

func buildEnvelope(t *testing.T, signer message.Signer, identifier string, nonce int64, network string, blockNumber uint64, blockHash string) *message.Envelope[attestation.Message] {
	t.Helper()
	env, err := message.Build[attestation.Message](signer, attestation.Domain, identifier, "", nonce, attestation.Message{NPOI: "0xa6008cea"}, network, blockNumber, blockHash)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

func newPipeline(t *testing.T, now int64, graphNode string) *validation.Pipeline[attestation.Message] {
	t.Helper()
	cb := callbook.New("", "", graphNode)
	return validation.New[attestation.Message](attestation.Domain, cb, identity.NoCheck, noncestore.NewStore(), func() int64 { return now })
}

func TestFirstMessageRejectedAndSeedsNonce(t *testing.T) {
	srv := blockHashServer(t, "0xmatch")
	signer, addr := newSigner(t)
	p := newPipeline(t, 1_000, srv.URL)

	env := buildEnvelope(t, signer, "QmTest", 1_000, "mainnet", 7534805, "0xmatch")
	_, err := p.Validate(context.Background(), env)

	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Reason != validation.ReasonFirstSighting {
		t.Fatalf("expected ReasonFirstSighting, got %v", err)
	}

	// The rejected message still seeded the table: the same nonce is now stale.
	if err := p.NonceStore.CheckAndUpdate("QmTest", addr.Hex(), 1_000); !errors.Is(err, noncestore.ErrStaleNonce) {
		t.Fatalf("expected nonce 1000 to be seeded, got %v", err)
	}
}

func TestSecondMessageAcceptedThenDuplicateRejected(t *testing.T) {
	srv := blockHashServer(t, "0xmatch")
	signer, _ := newSigner(t)
	p := newPipeline(t, 1_001, srv.URL)

	first := buildEnvelope(t, signer, "QmTest", 1_000, "mainnet", 7534805, "0xmatch")
	if _, err := p.Validate(context.Background(), first); err == nil {
		t.Fatalf("expected first-sighting rejection")
	}

	second := buildEnvelope(t, signer, "QmTest", 1_001, "mainnet", 7534805, "0xmatch")
	if _, err := p.Validate(context.Background(), second); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}

	dup := buildEnvelope(t, signer, "QmTest", 1_001, "mainnet", 7534805, "0xmatch")
	_, err := p.Validate(context.Background(), dup)
	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Reason != validation.ReasonStaleNonce {
		t.Fatalf("expected ReasonStaleNonce, got %v", err)
	}
}

func TestStaleReplayRejectedByTimeCheck(t *testing.T) {
	srv := blockHashServer(t, "0xmatch")
	signer, _ := newSigner(t)
	p := newPipeline(t, 1_000, srv.URL)

	// now - nonce = ReplayLimit + 1 falls outside [0, ReplayLimit).
	env := buildEnvelope(t, signer, "QmTest", 1_000-(validation.ReplayLimit+1), "mainnet", 7534805, "0xmatch")
	_, err := p.Validate(context.Background(), env)

	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Reason != validation.ReasonMessageAge {
		t.Fatalf("expected ReasonMessageAge, got %v", err)
	}
}

func TestFutureDatedNonceRejected(t *testing.T) {
	srv := blockHashServer(t, "0xmatch")
	signer, _ := newSigner(t)
	p := newPipeline(t, 1_000, srv.URL)

	env := buildEnvelope(t, signer, "QmTest", 1_001, "mainnet", 7534805, "0xmatch")
	_, err := p.Validate(context.Background(), env)

	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Reason != validation.ReasonMessageAge {
		t.Fatalf("expected ReasonMessageAge for future-dated nonce, got %v", err)
	}
}

func TestWrongChainHeadRejected(t *testing.T) {
	srv := blockHashServer(t, "0xthe-real-hash")
	signer, _ := newSigner(t)
	p := newPipeline(t, 1_000, srv.URL)

	env := buildEnvelope(t, signer, "QmTest", 1_000, "mainnet", 7534805, "0x0000")
	_, err := p.Validate(context.Background(), env)

	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Reason != validation.ReasonHashMismatch {
		t.Fatalf("expected ReasonHashMismatch, got %v", err)
	}
}

func TestConcurrentIdenticalMessagesAcceptedOnce(t *testing.T) {
	srv := blockHashServer(t, "0xmatch")
	signer, _ := newSigner(t)
	p := newPipeline(t, 1_000, srv.URL)

	seed := buildEnvelope(t, signer, "QmTest", 999, "mainnet", 7534805, "0xmatch")
	if _, err := p.Validate(context.Background(), seed); err == nil {
		t.Fatalf("expected first-sighting rejection to seed the nonce")
	}

	const n = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env := buildEnvelope(t, signer, "QmTest", 1_000, "mainnet", 7534805, "0xmatch")
			if _, err := p.Validate(context.Background(), env); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one acceptance, got %d", accepted)
	}
}
