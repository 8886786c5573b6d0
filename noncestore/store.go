// Package noncestore implements the per-(identifier, sender) nonce table
// consulted by the validation pipeline's nonce check: an in-memory,
// concurrency-safe mapping identifier -> (sender -> latest_nonce).
package noncestore

import "sync"

// Interface is satisfied by both Store and BoundedStore.
type Interface interface {
	// CheckAndUpdate looks up (identifier, sender). If absent, it stores
	// nonce and returns ErrFirstSighting (the first message from a sender
	// is always rejected, to prevent an attacker from seeding an arbitrary
	// starting nonce). If present and saved >= nonce, it returns
	// ErrStaleNonce without updating. Otherwise it stores nonce and returns
	// nil. The whole read-compare-write sequence is atomic with respect to
	// concurrent callers for the same (identifier, sender).
	CheckAndUpdate(identifier, sender string, nonce int64) error
}

// Store is the unbounded, exclusive-write/shared-read nonce table. No
// persistence and no pruning: memory is O(identifiers x senders); the time
// check bounds the replay risk across restarts, and operators embed
// pruning policies if needed (BoundedStore is one such policy).
type Store struct {
	mu    sync.RWMutex
	table map[string]map[string]int64
}

// NewStore returns an empty unbounded nonce store.
func NewStore() *Store {
	return &Store{table: make(map[string]map[string]int64)}
}

// CheckAndUpdate implements Interface. The exclusive lock spans the entire
// read-compare-write window and is never held across I/O.
func (s *Store) CheckAndUpdate(identifier, sender string, nonce int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	senders, ok := s.table[identifier]
	if !ok {
		senders = make(map[string]int64)
		s.table[identifier] = senders
	}

	saved, seen := senders[sender]
	senders[sender] = nonce

	if !seen {
		return ErrFirstSighting
	}
	if saved >= nonce {
		// Roll back: a stale nonce must not overwrite the saved value.
		senders[sender] = saved
		return ErrStaleNonce
	}
	return nil
}
