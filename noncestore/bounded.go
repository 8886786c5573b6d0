package noncestore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// senderMap is the per-identifier nonce table, guarded by its own mutex so
// the identifier-level LRU and the nonce critical section never share a
// lock.
type senderMap struct {
	mu sync.Mutex
	m  map[string]int64
}

// BoundedStore is an LRU-pruned nonce store: the set of identifiers is
// capped, evicting the least-recently-used identifier's entire sender
// table when full, for operators who want bounded memory growth.
type BoundedStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *senderMap]
}

// NewBoundedStore returns a nonce store capped at size identifiers.
func NewBoundedStore(size int) (*BoundedStore, error) {
	cache, err := lru.New[string, *senderMap](size)
	if err != nil {
		return nil, err
	}
	return &BoundedStore{cache: cache}, nil
}

func (b *BoundedStore) getOrCreate(identifier string) *senderMap {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sm, ok := b.cache.Get(identifier); ok {
		return sm
	}
	sm := &senderMap{m: make(map[string]int64)}
	b.cache.Add(identifier, sm)
	return sm
}

// CheckAndUpdate implements Interface.
func (b *BoundedStore) CheckAndUpdate(identifier, sender string, nonce int64) error {
	sm := b.getOrCreate(identifier)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	saved, seen := sm.m[sender]
	sm.m[sender] = nonce

	if !seen {
		return ErrFirstSighting
	}
	if saved >= nonce {
		sm.m[sender] = saved
		return ErrStaleNonce
	}
	return nil
}
