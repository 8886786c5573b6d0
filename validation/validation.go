// Package validation implements the four-step inbound validation pipeline:
// identity-authorization, timestamp freshness, block-hash agreement, and
// per-(identifier, sender) monotonic nonce, composed left-to-right with
// short-circuit on the first failure.
package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gossipradio/agent-sdk/callbook"
	"github.com/gossipradio/agent-sdk/identity"
	"github.com/gossipradio/agent-sdk/message"
	"github.com/gossipradio/agent-sdk/noncestore"
)

var log = logrus.WithField("component", "validation")

// SetLogger overrides the package-level logger.
func SetLogger(l *logrus.Logger) { log = l.WithField("component", "validation") }

// ReplayLimit is the maximum age, in the nonce's unit, a message may carry
// before the time check rejects it as stale: 3,600,000, which is one hour
// for millisecond nonces and about 41.7 days for epoch-second nonces (the
// unit the Clock and the example radios use).
const ReplayLimit = 3_600_000

// Reason classifies why a message failed the pipeline, for logging and for
// the agent boundary's Validation error kind.
type Reason int

const (
	ReasonUnauthorized Reason = iota
	ReasonMessageAge
	ReasonHashMismatch
	ReasonFirstSighting
	ReasonStaleNonce
	ReasonQueryError
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthorized:
		return "Unauthorized"
	case ReasonMessageAge:
		return "MessageAge"
	case ReasonHashMismatch:
		return "HashMismatch"
	case ReasonFirstSighting:
		return "FirstSighting"
	case ReasonStaleNonce:
		return "StaleNonce"
	case ReasonQueryError:
		return "QueryError"
	default:
		return "Other"
	}
}

// Error is returned by Validate on pipeline failure. It is always a
// Validation-kind error: the message is dropped, the agent is unaffected.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "validation: " + e.Reason.String()
	}
	return fmt.Sprintf("validation: %s: %s", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TypeString returns the stable type-string for telemetry tagging.
func (e *Error) TypeString() string { return e.Reason.String() }

// Clock abstracts "now" in the nonce's unit (seconds since epoch) so the
// time check is deterministically testable.
type Clock func() int64

// Pipeline validates inbound envelopes for one radio. It holds no
// per-message state; NonceStore is the only thing the Validate call
// mutates, and only for accepted or first-sighting messages.
type Pipeline[T message.Payload] struct {
	Domain     message.TypedDomain
	CallBook   *callbook.CallBook
	Policy     identity.Policy
	NonceStore noncestore.Interface
	Now        Clock
}

// New builds a Pipeline whose time check reads "now" from the supplied
// clock.
func New[T message.Payload](domain message.TypedDomain, cb *callbook.CallBook, policy identity.Policy, store noncestore.Interface, now Clock) *Pipeline[T] {
	return &Pipeline[T]{Domain: domain, CallBook: cb, Policy: policy, NonceStore: store, Now: now}
}

// Validate runs the four-step pipeline against env and returns the
// recovered sender's account on success. Steps run in a fixed order; any
// failure short-circuits and the message is dropped.
func (p *Pipeline[T]) Validate(ctx context.Context, env *message.Envelope[T]) (identity.Account, error) {
	// 1. Identity check (async: may call out to the registry/stake subgraph).
	sender, err := message.RecoverSender[T](p.Domain, env)
	if err != nil {
		return identity.Account{}, &Error{Reason: ReasonUnauthorized, Err: err}
	}
	account, err := identity.Verify(ctx, p.CallBook, p.Policy, sender)
	if err != nil {
		return identity.Account{}, &Error{Reason: ReasonUnauthorized, Err: err}
	}

	// 2. Time check (sync): now - nonce in [0, ReplayLimit).
	now := p.Now()
	age := now - env.Nonce
	if age < 0 || age >= ReplayLimit {
		return identity.Account{}, &Error{Reason: ReasonMessageAge, Err: fmt.Errorf("nonce %d, now %d, age %d", env.Nonce, now, age)}
	}

	// 3. Hash check (async): block_hash must agree with the trusted chain view.
	trusted, err := p.CallBook.BlockHash(ctx, env.Network, env.BlockNumber)
	if err != nil {
		return identity.Account{}, &Error{Reason: ReasonQueryError, Err: err}
	}
	if trusted != env.BlockHash {
		return identity.Account{}, &Error{Reason: ReasonHashMismatch, Err: fmt.Errorf("block %s@%d: got %s, want %s", env.Network, env.BlockNumber, env.BlockHash, trusted)}
	}

	// 4. Nonce check (sync, under lock): first-sighting always rejects and
	// seeds; a non-strictly-increasing nonce is stale; otherwise accept.
	if err := p.NonceStore.CheckAndUpdate(env.Identifier, sender.Hex(), env.Nonce); err != nil {
		switch {
		case errors.Is(err, noncestore.ErrFirstSighting):
			return identity.Account{}, &Error{Reason: ReasonFirstSighting, Err: err}
		case errors.Is(err, noncestore.ErrStaleNonce):
			return identity.Account{}, &Error{Reason: ReasonStaleNonce, Err: err}
		default:
			return identity.Account{}, &Error{Reason: ReasonUnauthorized, Err: err}
		}
	}

	log.WithFields(logrus.Fields{
		"identifier": env.Identifier,
		"sender":     sender.Hex(),
		"nonce":      env.Nonce,
	}).Debug("message validated")
	return account, nil
}
