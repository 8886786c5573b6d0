// Package seenstore implements the set of message ids the local node has
// already observed or originated, used for inbound dedup and self-loop
// suppression.
package seenstore

import "sync"

// Interface is satisfied by both Store and BoundedStore.
type Interface interface {
	// InsertIfAbsent records id and reports whether this is the first time
	// it has been seen. Callers at the signal handler use a false result to
	// drop duplicate or self-relayed deliveries.
	InsertIfAbsent(id string) (firstSeen bool)
}

// Insert records id unconditionally, discarding the first-seen result.
// Used at outbound publish time, where the caller does not care whether
// the id happens to already be present.
func Insert(s Interface, id string) { s.InsertIfAbsent(id) }

// Store is the unbounded seen-id set, exclusive-lock guarded for
// insert/contains. Unbounded in the core; BoundedStore offers an LRU
// policy for operators that want one.
type Store struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewStore returns an empty unbounded seen-id store.
func NewStore() *Store {
	return &Store{set: make(map[string]struct{})}
}

// InsertIfAbsent implements Interface.
func (s *Store) InsertIfAbsent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[id]; ok {
		return false
	}
	s.set[id] = struct{}{}
	return true
}
