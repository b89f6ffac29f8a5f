package clustercache

// Hooks are lightweight callbacks for high-signal barrier events.
// Implementations MUST be cheap and non-blocking; the proxy calls them
// on hot paths and from response-listener goroutines. Wrap a Hooks with
// hooks/async to move work off those paths.
type Hooks interface {
	// A per-key barrier was installed for a mutating call.
	BarrierInstalled(key Key)

	// A barrier (per-key if isAll is false, the all-invalidation slot
	// otherwise) timed out waiting for its release signal.
	BarrierTimedOut(key Key, isAll bool)

	// The proxy failed to send an invalidation ack back to the server.
	// This is the escalation path for the ack-send failures the spec
	// otherwise only logs and swallows.
	PeerAckFailed(err *PeerAckFailure)

	// onDisconnect drained the pending tables; pendingHash reports how
	// many per-key entries were outstanding at the time, pendingAll
	// whether a clear was.
	Disconnected(pendingHash int, pendingAll bool)

	// onReconnect advertised this key set (and possibly a pending
	// clear) to the server.
	Reconnected(keys []Key, clearInProgress bool)
}

// NopHooks is the default no-op Hooks.
type NopHooks struct{}

func (NopHooks) BarrierInstalled(Key)          {}
func (NopHooks) BarrierTimedOut(Key, bool)     {}
func (NopHooks) PeerAckFailed(*PeerAckFailure) {}
func (NopHooks) Disconnected(int, bool)        {}
func (NopHooks) Reconnected([]Key, bool)       {}
