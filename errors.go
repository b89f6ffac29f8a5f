package clustercache

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned verbatim (matched with errors.Is) whenever a
// deadline elapses, whether waiting on the transport or on a barrier.
var ErrTimeout = errors.New("clustercache: timeout")

// ErrDisconnected is returned when the transport session is lost during
// a call or a barrier wait.
var ErrDisconnected = errors.New("clustercache: disconnected")

// ProtocolError reports a response of the wrong kind for the operation
// that provoked it (a malformed or mismatched server reply).
type ProtocolError struct {
	Op   string
	Kind Kind
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("clustercache: invalid response for %s: %s", e.Op, e.Kind)
}

// ProxyError wraps any transport failure that is not a Timeout or
// Disconnected, including a *ProtocolError returned by the transport
// itself (still reachable through errors.As).
type ProxyError struct {
	Op  string
	Err error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("clustercache: %s: %v", e.Op, e.Err)
}

func (e *ProxyError) Unwrap() error { return e.Err }

// wrapTransportErr maps a raw transport error to the spec's error
// taxonomy: Timeout and Disconnected propagate as-is, everything else
// becomes a ProxyError.
func wrapTransportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return ErrTimeout
	}
	if errors.Is(err, ErrDisconnected) {
		return ErrDisconnected
	}
	return &ProxyError{Op: op, Err: err}
}

// PeerAckFailure records that the proxy failed to send an invalidation
// ack back to the server. It is never returned to a mutating caller
// (per spec, ack-send failures are logged and swallowed); it is
// reported through Hooks.PeerAckFailed for callers that want
// visibility beyond a log line.
type PeerAckFailure struct {
	Kind           Kind
	Key            Key
	InvalidationID int64
	Err            error
}

func (e *PeerAckFailure) Error() string {
	return fmt.Sprintf("clustercache: failed to ack %s invalidation (key=%d id=%d): %v",
		e.Kind, e.Key, e.InvalidationID, e.Err)
}

func (e *PeerAckFailure) Unwrap() error { return e.Err }
