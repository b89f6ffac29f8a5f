package clustercache

import (
	"context"
	"sync"
	"time"
)

// StrongProxy wraps a CommonProxy with the cluster-wide invalidation
// barrier: a mutating call returns to its caller only after every
// currently-connected peer client has acknowledged its local
// invalidation for that mutation.
type StrongProxy struct {
	delegate *CommonProxy
	entity   Transport
	log      Logger
	hooks    Hooks

	mu           sync.Mutex
	hashInFlight map[Key]*signal
	allInFlight  *signal // nil when no clear is outstanding

	disconnected chan struct{} // closed when the current session is lost
	discFired    bool          // whether disconnected has been closed already
}

// NewStrongProxy builds a StrongProxy over transport for cacheId,
// registering the barrier-release listeners and the reconnect /
// disconnect hooks. invalidation is the upstream collaborator the
// delegate CommonProxy notifies of peer invalidations.
func NewStrongProxy(cacheId CacheId, transport Transport, invalidation InvalidationListener, log Logger, hooks Hooks) *StrongProxy {
	log = coalesce[Logger](log, NopLogger{})
	hooks = coalesce[Hooks](hooks, NopHooks{})

	sp := &StrongProxy{
		delegate:     NewCommonProxy(cacheId, transport, invalidation, log, hooks),
		entity:       transport,
		log:          log,
		hooks:        hooks,
		hashInFlight: make(map[Key]*signal),
		disconnected: make(chan struct{}),
	}

	transport.AddResponseListener(KindHashInvalidationDone, sp.onHashInvalidationDone)
	transport.AddResponseListener(KindAllInvalidationDone, sp.onAllInvalidationDone)
	transport.SetReconnectListener(sp.onReconnect)
	transport.SetDisconnectionListener(sp.onDisconnect)

	return sp
}

// CacheId returns the logical cache id this proxy was built for.
func (sp *StrongProxy) CacheId() CacheId { return sp.delegate.CacheId() }

func (sp *StrongProxy) Close() error { return sp.delegate.Close() }

func (sp *StrongProxy) Get(ctx context.Context, key Key) (Chain, error) {
	return sp.delegate.Get(ctx, key)
}

func (sp *StrongProxy) Append(ctx context.Context, key Key, payload []byte) error {
	_, err := performWaitingForHashInvalidation(sp, key, func() (struct{}, error) {
		return struct{}{}, sp.delegate.Append(ctx, key, payload)
	})
	return err
}

func (sp *StrongProxy) GetAndAppend(ctx context.Context, key Key, payload []byte) (Chain, error) {
	return performWaitingForHashInvalidation(sp, key, func() (Chain, error) {
		return sp.delegate.GetAndAppend(ctx, key, payload)
	})
}

// ReplaceAtHead is fire-and-forget; it does not participate in the
// barrier (the server silently ignores stale CAS attempts, so there is
// nothing for peers to invalidate and acknowledge on a no-op).
func (sp *StrongProxy) ReplaceAtHead(ctx context.Context, key Key, expect, update Chain) error {
	return sp.delegate.ReplaceAtHead(ctx, key, expect, update)
}

func (sp *StrongProxy) Clear(ctx context.Context) error {
	_, err := performWaitingForAllInvalidation(sp, func() (struct{}, error) {
		return struct{}{}, sp.delegate.Clear(ctx)
	})
	return err
}

// performWaitingForHashInvalidation installs (or waits for, then
// installs) the per-key barrier, runs op, and waits for the barrier's
// release signal before returning op's result.
func performWaitingForHashInvalidation[T any](sp *StrongProxy, key Key, op func() (T, error)) (T, error) {
	var zero T
	end := time.Now().Add(sp.entity.GetTimeouts().Mutative)

	mine := newSignal()
	for {
		if !sp.entity.IsConnected() {
			return zero, ErrDisconnected
		}

		sp.mu.Lock()
		existing, present := sp.hashInFlight[key]
		if !present {
			sp.hashInFlight[key] = mine
		}
		sp.mu.Unlock()

		if !present {
			sp.hooks.BarrierInstalled(key)
			break
		}

		if !sp.waitSignal(existing, end) {
			return zero, sp.waitFailure()
		}
	}

	result, err := op()
	if err != nil {
		sp.mu.Lock()
		delete(sp.hashInFlight, key)
		sp.mu.Unlock()
		mine.fire()
		return zero, err
	}

	sp.log.Debug("waiting for invalidations", Fields{"key": key})
	if !sp.waitSignal(mine, end) {
		// Deadline expired; the slot stays in place so the next
		// reconnect handshake can advertise it for reconciliation.
		sp.hooks.BarrierTimedOut(key, false)
		return zero, sp.waitFailure()
	}
	sp.log.Debug("key invalidated on all clients, unblocking", Fields{"key": key})
	return result, nil
}

func performWaitingForAllInvalidation[T any](sp *StrongProxy, op func() (T, error)) (T, error) {
	var zero T
	end := time.Now().Add(sp.entity.GetTimeouts().Mutative)

	mine := newSignal()
	for {
		if !sp.entity.IsConnected() {
			return zero, ErrDisconnected
		}

		sp.mu.Lock()
		existing := sp.allInFlight
		if existing == nil {
			sp.allInFlight = mine
		}
		sp.mu.Unlock()

		if existing == nil {
			break
		}

		if !sp.waitSignal(existing, end) {
			return zero, sp.waitFailure()
		}
	}

	result, err := op()
	if err != nil {
		sp.mu.Lock()
		sp.allInFlight = nil
		sp.mu.Unlock()
		mine.fire()
		return zero, err
	}

	if !sp.waitSignal(mine, end) {
		sp.hooks.BarrierTimedOut(0, true)
		return zero, sp.waitFailure()
	}
	sp.log.Debug("all invalidated on all clients, unblocking", nil)
	return result, nil
}

// waitSignal blocks until s fires, the deadline elapses, or the
// transport disconnects. It returns true iff s fired while the
// transport was (and remains) connected.
func (sp *StrongProxy) waitSignal(s *signal, deadline time.Time) bool {
	fired := s.wait(deadline, sp.disconnectedCh())
	return fired && sp.entity.IsConnected()
}

// disconnectedCh returns the channel closed when the current session
// is lost. Reading it under the lock keeps it consistent with
// onReconnect's channel swap.
func (sp *StrongProxy) disconnectedCh() <-chan struct{} {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.disconnected
}

func (sp *StrongProxy) waitFailure() error {
	if !sp.entity.IsConnected() {
		return ErrDisconnected
	}
	return ErrTimeout
}

// onHashInvalidationDone releases the per-key barrier for key, if one
// is outstanding. Idempotent: repeated delivery for an already-released
// key is a no-op.
func (sp *StrongProxy) onHashInvalidationDone(r Response) {
	sp.log.Debug("server notified hash invalidated on all clients", Fields{"key": r.Key})
	sp.mu.Lock()
	s, ok := sp.hashInFlight[r.Key]
	if ok {
		delete(sp.hashInFlight, r.Key)
	}
	sp.mu.Unlock()
	if ok {
		s.fire()
	}
}

// onAllInvalidationDone releases the all-invalidation barrier, if one
// is outstanding.
func (sp *StrongProxy) onAllInvalidationDone(Response) {
	sp.log.Debug("server notified all invalidated on all clients", nil)
	sp.mu.Lock()
	s := sp.allInFlight
	sp.allInFlight = nil
	sp.mu.Unlock()
	if s != nil {
		s.fire()
	}
}

// onDisconnect fires every outstanding signal and drains both pending
// structures, so no waiter blocks forever past a lost session. Waiters
// observe !IsConnected() and report ErrDisconnected rather than
// silently succeeding.
func (sp *StrongProxy) onDisconnect() {
	sp.mu.Lock()
	pending := sp.hashInFlight
	sp.hashInFlight = make(map[Key]*signal)
	all := sp.allInFlight
	sp.allInFlight = nil
	if !sp.discFired {
		sp.discFired = true
		close(sp.disconnected)
	}
	sp.mu.Unlock()

	for _, s := range pending {
		s.fire()
	}
	if all != nil {
		all.fire()
	}

	sp.hooks.Disconnected(len(pending), all != nil)
}

// onReconnect stamps the pending table's key set (and clear flag) into
// the handshake message so the server knows which barriers to re-drive
// fan-out for.
func (sp *StrongProxy) onReconnect(msg *ReconnectMessage) {
	sp.mu.Lock()
	keys := make([]Key, 0, len(sp.hashInFlight))
	for k := range sp.hashInFlight {
		keys = append(keys, k)
	}
	clearing := sp.allInFlight != nil
	// A fresh session is being established: re-arm the disconnect
	// gate for the next drop.
	sp.disconnected = make(chan struct{})
	sp.discFired = false
	sp.mu.Unlock()

	msg.AddInvalidationsInProgress(keys)
	if clearing {
		msg.SetClearInProgress()
	}
	sp.hooks.Reconnected(keys, clearing)
}
