package seenstore_test

import (
	"sync"
	"testing"

	"github.com/gossipradio/agent-sdk/seenstore"
)

func TestInsertIfAbsent(t *testing.T) {
	s := seenstore.NewStore()
	if !s.InsertIfAbsent("msg-1") {
		t.Fatalf("expected first insert to report firstSeen")
	}
	if s.InsertIfAbsent("msg-1") {
		t.Fatalf("expected second insert of same id to report already seen")
	}
}

func TestConcurrentInsertExactlyOnceFirstSeen(t *testing.T) {
	s := seenstore.NewStore()
	const n = 50
	var wg sync.WaitGroup
	var firstSeenCount int
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.InsertIfAbsent("dup") {
				mu.Lock()
				firstSeenCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firstSeenCount != 1 {
		t.Fatalf("expected exactly one firstSeen, got %d", firstSeenCount)
	}
}

func TestBoundedStoreSameSemantics(t *testing.T) {
	s, err := seenstore.NewBoundedStore(4)
	if err != nil {
		t.Fatalf("new bounded store: %v", err)
	}
	if !s.InsertIfAbsent("a") {
		t.Fatalf("expected first insert to report firstSeen")
	}
	if s.InsertIfAbsent("a") {
		t.Fatalf("expected duplicate to report already seen")
	}
}
