package localtier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/clustercache"
)

type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore { return &memStore{m: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return true, nil
}

func (s *memStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *memStore) Close(_ context.Context) error { return nil }

func (s *memStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// flushableStore additionally satisfies Flusher.
type flushableStore struct {
	*memStore
	flushed int
}

func (s *flushableStore) Flush(_ context.Context) error {
	s.mu.Lock()
	s.m = make(map[string][]byte)
	s.mu.Unlock()
	s.flushed++
	return nil
}

func TestTier_GetSetInvalidateHash(t *testing.T) {
	store := newMemStore()
	tier := New(store, Options{Namespace: "users"})

	if _, ok, _ := tier.Get(1); ok {
		t.Fatalf("expected miss before Set")
	}
	if err := tier.Set(1, []byte("ada"), 1, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := tier.Get(1)
	if err != nil || !ok || string(v) != "ada" {
		t.Fatalf("Get after Set: ok=%v err=%v v=%q", ok, err, v)
	}

	tier.OnInvalidateHash(1)
	if _, ok, _ := tier.Get(1); ok {
		t.Fatalf("expected miss after OnInvalidateHash")
	}
}

func TestTier_OnInvalidateAllFallsBackToTrackedKeyset(t *testing.T) {
	store := newMemStore()
	tier := New(store, Options{Namespace: "users"})

	for k := clustercache.Key(0); k < 5; k++ {
		if err := tier.Set(k, []byte("v"), 1, time.Minute); err != nil {
			t.Fatalf("Set(%d): %v", k, err)
		}
	}
	if got := store.size(); got != 5 {
		t.Fatalf("expected 5 entries, got %d", got)
	}

	tier.OnInvalidateAll()
	if got := store.size(); got != 0 {
		t.Fatalf("expected store empty after OnInvalidateAll, got %d entries", got)
	}
}

func TestTier_OnInvalidateAllPrefersFlush(t *testing.T) {
	store := &flushableStore{memStore: newMemStore()}
	tier := New(store, Options{Namespace: "users"})

	if err := tier.Set(1, []byte("v"), 1, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	tier.OnInvalidateAll()
	if store.flushed != 1 {
		t.Fatalf("expected Flush to be used once, got %d", store.flushed)
	}
}

func TestTier_NamespacesDoNotCollide(t *testing.T) {
	store := newMemStore()
	users := New(store, Options{Namespace: "users"})
	orders := New(store, Options{Namespace: "orders"})

	if err := users.Set(1, []byte("ada"), 1, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := orders.Set(1, []byte("order-1"), 1, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if v, ok, _ := users.Get(1); !ok || string(v) != "ada" {
		t.Fatalf("users.Get(1) = %q, %v", v, ok)
	}
	if v, ok, _ := orders.Get(1); !ok || string(v) != "order-1" {
		t.Fatalf("orders.Get(1) = %q, %v", v, ok)
	}
}
