// Package localtier adapts a provider.Provider byte store into a
// clustercache.InvalidationListener: the local (L1) tier sitting in
// front of the cluster tier, purged whenever the server (or another
// client's mutation) invalidates a key.
package localtier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/clustercache"
	"github.com/unkn0wn-root/clustercache/provider"
)

// Flusher is an optional capability a provider.Provider may implement
// to support clearing every entry in one call. Providers that don't
// implement it fall back to a tracked-keyset delete in Tier.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Tier wraps a provider.Provider as the local tier for a single
// namespace, keeping Get/Set/Del keys collision-free across
// namespaces sharing one underlying store.
type Tier struct {
	ns    string
	store provider.Provider
	log   clustercache.Logger
	ctx   func() context.Context

	mu   sync.Mutex
	seen map[string]struct{} // tracked keyset, used only when store isn't a Flusher
}

var _ clustercache.InvalidationListener = (*Tier)(nil)

// Options configures a Tier.
type Options struct {
	// Namespace prefixes every key this Tier writes, so several Tiers
	// can share one provider.Provider without colliding.
	Namespace string
	Log       clustercache.Logger
	// Ctx supplies the context used for the background Get/Set/Del
	// calls invalidation triggers (OnInvalidateHash/OnInvalidateAll
	// carry no context of their own). Defaults to context.Background.
	Ctx func() context.Context
}

// New builds a Tier over store. Tier has no Close of its own and never
// closes store, since store may be shared.
func New(store provider.Provider, opts Options) *Tier {
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.Log == nil {
		opts.Log = clustercache.NopLogger{}
	}
	if opts.Ctx == nil {
		opts.Ctx = context.Background
	}
	t := &Tier{ns: opts.Namespace, store: store, log: opts.Log, ctx: opts.Ctx}
	if _, ok := store.(Flusher); !ok {
		t.seen = make(map[string]struct{})
	}
	return t
}

func (t *Tier) key(key clustercache.Key) string {
	return fmt.Sprintf("%s:%x", t.ns, key)
}

// Get reads a previously-cached value for key, or (nil, false, nil) on
// a miss.
func (t *Tier) Get(key clustercache.Key) ([]byte, bool, error) {
	return t.store.Get(t.ctx(), t.key(key))
}

// Set caches value for key with the given TTL and records it in the
// tracked keyset when the underlying store can't Flush.
func (t *Tier) Set(key clustercache.Key, value []byte, cost int64, ttl time.Duration) error {
	k := t.key(key)
	ok, err := t.store.Set(t.ctx(), k, value, cost, ttl)
	if err != nil {
		return err
	}
	if ok && t.seen != nil {
		t.mu.Lock()
		t.seen[k] = struct{}{}
		t.mu.Unlock()
	}
	return nil
}

// OnInvalidateHash purges key from the local tier. It satisfies
// clustercache.InvalidationListener.
func (t *Tier) OnInvalidateHash(key clustercache.Key) {
	k := t.key(key)
	if err := t.store.Del(t.ctx(), k); err != nil {
		t.log.Warn("localtier: purge failed", clustercache.Fields{"key": key, "err": err})
		return
	}
	if t.seen != nil {
		t.mu.Lock()
		delete(t.seen, k)
		t.mu.Unlock()
	}
}

// OnInvalidateAll purges every entry this Tier has written. It prefers
// the store's Flush when available; otherwise it deletes each key in
// the tracked keyset, a linear fallback for providers with no bulk
// clear.
func (t *Tier) OnInvalidateAll() {
	if f, ok := t.store.(Flusher); ok {
		if err := f.Flush(t.ctx()); err != nil {
			t.log.Warn("localtier: flush failed", clustercache.Fields{"err": err})
		}
		return
	}

	t.mu.Lock()
	keys := make([]string, 0, len(t.seen))
	for k := range t.seen {
		keys = append(keys, k)
	}
	t.seen = make(map[string]struct{})
	t.mu.Unlock()

	ctx := t.ctx()
	for _, k := range keys {
		if err := t.store.Del(ctx, k); err != nil {
			t.log.Warn("localtier: purge failed during clear", clustercache.Fields{"err": err})
		}
	}
}
