// Package reconnect detects fleet-wide session loss across the
// transports backing a set of proxies and fires a single callback once
// it has happened, mirroring ReconnectionThread from the original Java
// client: rather than reacting to any one transport's disconnect, it
// waits until every watched transport has dropped before declaring the
// fleet disconnected, since a reconnect handshake only makes sense once
// every entity agrees the old session is gone.
package reconnect

import (
	"context"
	"sync/atomic"
	"time"

	cc "github.com/unkn0wn-root/clustercache"
)

// Entity is the connectivity probe a Supervisor polls. clustercache.Transport
// satisfies it directly.
type Entity interface {
	IsConnected() bool
}

// Supervisor polls a set of entities every PollInterval and invokes
// Handle.OnReconnect exactly once, the instant none of them remain
// connected.
type Supervisor struct {
	handle       cc.ReconnectHandle
	entities     []Entity
	pollInterval time.Duration

	complete atomic.Bool
}

const defaultPollInterval = 200 * time.Millisecond

// New builds a Supervisor over entities, reporting to handle. A zero
// pollInterval defaults to 200ms, matching the original poll cadence.
func New(handle cc.ReconnectHandle, entities []Entity, pollInterval time.Duration) *Supervisor {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Supervisor{handle: handle, entities: entities, pollInterval: pollInterval}
}

// Run polls until every entity is disconnected, then calls
// handle.OnReconnect once and returns. It returns early, without
// calling OnReconnect, if ctx is canceled first.
func (s *Supervisor) Run(ctx context.Context) {
	t := time.NewTicker(s.pollInterval)
	defer t.Stop()

	for {
		if s.allDisconnected() {
			s.handle.OnReconnect()
			s.complete.Store(true)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// allDisconnected reports whether no entity is connected. Vacuously
// true with no entities to watch, matching noneMatch over an empty
// collection rather than polling forever waiting for a population that
// will never exist.
func (s *Supervisor) allDisconnected() bool {
	for _, e := range s.entities {
		if e.IsConnected() {
			return false
		}
	}
	return true
}

// IsComplete reports whether Run has already fired OnReconnect.
func (s *Supervisor) IsComplete() bool { return s.complete.Load() }
