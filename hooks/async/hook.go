// Package asynchook wraps a clustercache.Hooks with a bounded worker
// pool so barrier-event callbacks never run on the caller's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	proxy := clustercache.NewStrongProxy(cacheId, transport, invalidation, nil, hooks)
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/clustercache"
)

type Hooks struct {
	inner clustercache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ clustercache.Hooks = (*Hooks)(nil)

func New(inner clustercache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) BarrierInstalled(key clustercache.Key) {
	h.try(func() { h.inner.BarrierInstalled(key) })
}
func (h *Hooks) BarrierTimedOut(key clustercache.Key, isAll bool) {
	h.try(func() { h.inner.BarrierTimedOut(key, isAll) })
}
func (h *Hooks) PeerAckFailed(err *clustercache.PeerAckFailure) {
	h.try(func() { h.inner.PeerAckFailed(err) })
}
func (h *Hooks) Disconnected(pendingHash int, pendingAll bool) {
	h.try(func() { h.inner.Disconnected(pendingHash, pendingAll) })
}
func (h *Hooks) Reconnected(keys []clustercache.Key, clearInProgress bool) {
	h.try(func() { h.inner.Reconnected(keys, clearInProgress) })
}
