// Package identity owns the agent's signing key, derives its public
// address, and resolves on-chain authorization to act for a graph account.
package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/tyler-smith/go-bip39"

	"github.com/gossipradio/agent-sdk/callbook"
	"github.com/gossipradio/agent-sdk/message"
)

var log = logrus.WithField("component", "identity")

// SetLogger overrides the package-level logger.
func SetLogger(l *logrus.Logger) { log = l.WithField("component", "identity") }

// bitcoinSeedKey is the BIP-32 master-key HMAC key; Identity uses only the
// resulting 32-byte secp256k1 scalar, with no further child derivation,
// since an Identity is a single immutable keypair rather than a wallet of
// many addresses.
var bitcoinSeedKey = []byte("Bitcoin seed")

// Identity owns the signing key for the lifetime of an agent: created from a
// supplied secret at construction, immutable, and never serialized back out.
type Identity struct {
	privateKey   *ecdsa.PrivateKey
	address      message.Address
	graphAccount string
}

// Build derives an Identity from secret, which is either a 0x-prefixed or
// bare hex secp256k1 private key, or a BIP-39 mnemonic (space-separated
// words). Hex decoding is attempted first; on failure the secret is treated
// as a mnemonic.
func Build(secret, graphAccount string) (*Identity, error) {
	priv, err := parseSecret(secret)
	if err != nil {
		return nil, &Error{Kind: KindWallet, Err: err}
	}

	addr := message.FromCommon(crypto.PubkeyToAddress(priv.PublicKey))
	log.WithField("address", addr.Hex()).Debug("identity built")

	return &Identity{privateKey: priv, address: addr, graphAccount: graphAccount}, nil
}

func parseSecret(secret string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimSpace(secret)
	hexCandidate := strings.TrimPrefix(trimmed, "0x")
	if b, err := hex.DecodeString(hexCandidate); err == nil && len(b) == 32 {
		priv, err := crypto.ToECDSA(b)
		if err != nil {
			return nil, fmt.Errorf("identity: invalid private key: %w", err)
		}
		return priv, nil
	}

	if !bip39.IsMnemonicValid(trimmed) {
		return nil, fmt.Errorf("identity: secret is neither a valid private key nor a valid mnemonic")
	}
	seed := bip39.NewSeed(trimmed, "")
	mac := hmac.New(sha512.New, bitcoinSeedKey)
	mac.Write(seed)
	sum := mac.Sum(nil)
	priv, err := crypto.ToECDSA(sum[:32])
	if err != nil {
		return nil, fmt.Errorf("identity: derive key from mnemonic: %w", err)
	}
	return priv, nil
}

// Address returns the derived wallet address.
func (id *Identity) Address() message.Address { return id.address }

// GraphAccount returns the operator-chosen account string the identity
// claims to act for.
func (id *Identity) GraphAccount() string { return id.graphAccount }

// SignDigest implements message.Signer: it signs a 32-byte digest with the
// identity's private key. All signing funnels through this one method.
func (id *Identity) SignDigest(digest [32]byte) (message.Signature, error) {
	sig, err := crypto.Sign(digest[:], id.privateKey)
	if err != nil {
		return message.Signature{}, &Error{Kind: KindWallet, Err: err}
	}
	var out message.Signature
	copy(out[:], sig)
	return out, nil
}

// SignTyped hashes payload under domain and signs the resulting digest.
func (id *Identity) SignTyped(domain message.TypedDomain, payload message.Payload) (message.Signature, error) {
	digest := message.TypedHash(domain, payload)
	return id.SignDigest(digest)
}

// RecoverTyped reconstructs the typed hash and recovers the signing address
// from sig, without needing the private key.
func RecoverTyped(domain message.TypedDomain, payload message.Payload, sig message.Signature) (message.Address, error) {
	digest := message.TypedHash(domain, payload)
	pub, err := crypto.SigToPub(digest[:], sig[:])
	if err != nil {
		return message.Address{}, &Error{Kind: KindWallet, Err: err}
	}
	return message.FromCommon(crypto.PubkeyToAddress(*pub)), nil
}

// Account is the identity-resolution result: the recovered signing address
// and the graph account it speaks for. They are equal when the signer
// directly is a graph account.
type Account struct {
	Agent   message.Address
	Account string
}

// Verify resolves authorization for addr to act as a graph account under
// policy, consulting cb as needed. It is used both at agent construction
// (self-verification of the local identity) and by the validation
// pipeline's identity-check step (on a recovered message sender).
func Verify(ctx context.Context, cb *callbook.CallBook, policy Policy, addr message.Address) (Account, error) {
	switch policy {
	case NoCheck:
		return Account{Agent: addr, Account: addr.Hex()}, nil

	case ValidAddress:
		// addr is already a well-formed message.Address by construction.
		return Account{Agent: addr, Account: addr.Hex()}, nil

	case GraphcastRegistered:
		acct, err := cb.RegisteredIndexer(ctx, addr)
		if err != nil {
			return Account{}, &Error{Kind: KindUnauthorized, Err: err}
		}
		return Account{Agent: addr, Account: acct.ID}, nil

	case GraphNetworkAccount:
		if _, err := cb.NetworkSubgraph(ctx, callbook.Account{ID: addr.Hex()}); err != nil {
			return Account{}, &Error{Kind: KindUnauthorized, Err: err}
		}
		return Account{Agent: addr, Account: addr.Hex()}, nil

	case RegisteredIndexer:
		acct, err := cb.RegisteredIndexer(ctx, addr)
		if err != nil {
			return Account{}, &Error{Kind: KindUnauthorized, Err: err}
		}
		status, err := cb.NetworkSubgraph(ctx, acct)
		if err != nil {
			return Account{}, &Error{Kind: KindUnauthorized, Err: err}
		}
		if !stakeSatisfiesMinimum(status) {
			return Account{}, &Error{Kind: KindUnauthorized, Err: fmt.Errorf("identity: %s stake below minimum", acct.ID)}
		}
		return Account{Agent: addr, Account: acct.ID}, nil

	case Indexer:
		acct, err := cb.RegisteredIndexer(ctx, addr)
		if err != nil {
			if !callbook.IsNotRegistered(err) {
				return Account{}, &Error{Kind: KindUnauthorized, Err: err}
			}
			acct = callbook.Account{ID: addr.Hex()}
		}
		status, err := cb.NetworkSubgraph(ctx, acct)
		if err != nil {
			return Account{}, &Error{Kind: KindUnauthorized, Err: err}
		}
		if !stakeSatisfiesMinimum(status) {
			return Account{}, &Error{Kind: KindUnauthorized, Err: fmt.Errorf("identity: %s stake below minimum", acct.ID)}
		}
		return Account{Agent: addr, Account: acct.ID}, nil

	default:
		return Account{}, &Error{Kind: KindConfiguration, Err: fmt.Errorf("identity: unknown policy %v", policy)}
	}
}

// stakeSatisfiesMinimum compares staked tokens to the minimum stake using
// arbitrary-precision integers (spec §9's open question on fixed-point vs
// arbitrary-precision is resolved in favor of arbitrary precision); both
// fields are base-10 strings in the same token-wei unit.
func stakeSatisfiesMinimum(status callbook.NetworkStatus) bool {
	staked, ok := new(big.Int).SetString(status.StakedTokens, 10)
	if !ok {
		return false
	}
	minimum, ok := new(big.Int).SetString(status.MinimumStake, 10)
	if !ok {
		// No minimum configured upstream: treat as satisfied.
		return true
	}
	return staked.Cmp(minimum) >= 0
}
