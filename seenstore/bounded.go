package seenstore

import lru "github.com/hashicorp/golang-lru/v2"

// BoundedStore is an LRU-pruned seen-id set, capped at a fixed size.
type BoundedStore struct {
	cache *lru.Cache[string, struct{}]
}

// NewBoundedStore returns a seen-id store capped at size entries.
func NewBoundedStore(size int) (*BoundedStore, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &BoundedStore{cache: cache}, nil
}

// InsertIfAbsent implements Interface.
func (b *BoundedStore) InsertIfAbsent(id string) bool {
	alreadyPresent, _ := b.cache.ContainsOrAdd(id, struct{}{})
	return !alreadyPresent
}
