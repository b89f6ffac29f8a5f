package clustercache

import (
	"context"
	"time"
)

// Timeouts bundles the two scalar durations the transport applies: the
// read timeout for get, and the mutative timeout for every call that
// installs a barrier.
type Timeouts struct {
	Read     time.Duration
	Mutative time.Duration
}

// Transport is the collaborator the core proxies require: send one
// request, receive zero-or-more asynchronous responses. Implementations
// must be safe for concurrent use; the receive side may invoke
// registered listeners on its own goroutine(s) concurrently with caller
// goroutines, but must serialize listener invocations per Kind.
//
// Every InvokeWait* method fails with ErrTimeout (deadline exceeded),
// ErrDisconnected (session lost), or *ProtocolError (server returned a
// wrong-kind response) — never an untyped error for those cases.
type Transport interface {
	// InvokeWaitSent returns once the outbound frame is flushed; the
	// caller does not expect a response.
	InvokeWaitSent(ctx context.Context, req Request, replicate bool) error

	// InvokeWaitReceived returns once the server has acknowledged
	// receipt of req, before applying it.
	InvokeWaitReceived(ctx context.Context, req Request, replicate bool) error

	// InvokeWaitRetired returns once the server has fully applied req,
	// replicated it if replicate, and produced its response. This is
	// the only mode that returns application data.
	InvokeWaitRetired(ctx context.Context, req Request, replicate bool) (Response, error)

	// AddResponseListener registers fn for unsolicited server messages
	// of the given kind. At most one listener per kind may be
	// registered; registering again replaces the previous listener.
	AddResponseListener(kind Kind, fn ResponseListener)

	// SetReconnectListener registers the hook fired on each session
	// re-establishment; fn may mutate the ReconnectMessage before the
	// handshake continues. Registering again replaces the previous hook.
	SetReconnectListener(fn func(*ReconnectMessage))

	// SetDisconnectionListener registers the hook fired each time the
	// session is lost. Registering again replaces the previous hook.
	SetDisconnectionListener(fn func())

	// IsConnected reports the current transport state.
	IsConnected() bool

	// GetTimeouts returns the configured read and mutative timeouts.
	GetTimeouts() Timeouts
}
