// Package memory is an in-process fake of clustercache.Transport: a
// single-process stand-in for "the cluster tier" used by tests.
//
// Memory answers every mutation as if every other client had already
// acknowledged the resulting invalidation, unless SetAutoInvalidate(false)
// is used to drive barrier-timeout and multi-client scenarios by hand
// with the Fire* methods.
//
// Listeners run synchronously on the goroutine that triggers the
// delivery (a Fire* call or an auto-invalidating mutation); concurrent
// deliveries of the same Kind are not serialized against each other.
package memory

import (
	"context"
	"sync"

	cc "github.com/unkn0wn-root/clustercache"
)

// Memory is a fake clustercache.Transport holding server-side Chain
// state in process memory.
type Memory struct {
	mu        sync.Mutex
	chains    map[cc.Key]cc.Chain
	timeouts  cc.Timeouts
	connected bool

	listeners    map[cc.Kind]cc.ResponseListener
	reconnectFn  func(*cc.ReconnectMessage)
	disconnectFn func()

	autoInvalidate bool
	nextInvID      int64

	hashAcks int
	allAcks  int
}

var _ cc.Transport = (*Memory)(nil)

// New builds a connected Memory transport with the given timeouts and
// auto-invalidation enabled.
func New(timeouts cc.Timeouts) *Memory {
	return &Memory{
		chains:         make(map[cc.Key]cc.Chain),
		timeouts:       timeouts,
		connected:      true,
		listeners:      make(map[cc.Kind]cc.ResponseListener),
		autoInvalidate: true,
	}
}

// SetAutoInvalidate toggles whether a mutation immediately fires its
// own *InvalidationDone notification. Disable it to drive barrier
// release by hand via FireHashInvalidationDone/FireAllInvalidationDone.
func (m *Memory) SetAutoInvalidate(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoInvalidate = on
}

func (m *Memory) listener(kind cc.Kind) cc.ResponseListener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listeners[kind]
}

func (m *Memory) deliver(kind cc.Kind, resp cc.Response) {
	if fn := m.listener(kind); fn != nil {
		fn(resp)
	}
}

func (m *Memory) InvokeWaitSent(ctx context.Context, req cc.Request, replicate bool) error {
	if !m.IsConnected() {
		return cc.ErrDisconnected
	}
	switch req.Op {
	case cc.OpReplaceAtHead:
		m.mu.Lock()
		current := m.chains[req.Key]
		if current.Equal(req.Expect) {
			m.chains[req.Key] = req.Update
		}
		m.mu.Unlock()
	case cc.OpClientInvalidationAck:
		m.mu.Lock()
		m.hashAcks++
		m.mu.Unlock()
	case cc.OpClientInvalidationAllAck:
		m.mu.Lock()
		m.allAcks++
		m.mu.Unlock()
	}
	return nil
}

// HashAckCount returns how many OpClientInvalidationAck requests have been
// sent through InvokeWaitSent so far.
func (m *Memory) HashAckCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashAcks
}

// AllAckCount returns how many OpClientInvalidationAllAck requests have been
// sent through InvokeWaitSent so far.
func (m *Memory) AllAckCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allAcks
}

func (m *Memory) InvokeWaitReceived(ctx context.Context, req cc.Request, replicate bool) error {
	if !m.IsConnected() {
		return cc.ErrDisconnected
	}
	if req.Op != cc.OpAppend {
		return nil
	}
	m.mu.Lock()
	m.chains[req.Key] = m.chains[req.Key].Append(req.Payload)
	auto := m.autoInvalidate
	m.mu.Unlock()

	if auto {
		m.FireHashInvalidationDone(req.Key)
	}
	return nil
}

func (m *Memory) InvokeWaitRetired(ctx context.Context, req cc.Request, replicate bool) (cc.Response, error) {
	if !m.IsConnected() {
		return cc.Response{}, cc.ErrDisconnected
	}

	switch req.Op {
	case cc.OpGet:
		m.mu.Lock()
		chain := m.chains[req.Key]
		m.mu.Unlock()
		return cc.Response{Kind: cc.KindGetResponse, Chain: chain, Key: req.Key}, nil

	case cc.OpGetAndAppend:
		m.mu.Lock()
		m.chains[req.Key] = m.chains[req.Key].Append(req.Payload)
		chain := m.chains[req.Key]
		auto := m.autoInvalidate
		m.mu.Unlock()

		if auto {
			m.FireHashInvalidationDone(req.Key)
		}
		return cc.Response{Kind: cc.KindGetResponse, Chain: chain, Key: req.Key}, nil

	case cc.OpClear:
		m.mu.Lock()
		m.chains = make(map[cc.Key]cc.Chain)
		auto := m.autoInvalidate
		m.mu.Unlock()

		if auto {
			m.FireAllInvalidationDone()
		}
		return cc.Response{}, nil

	default:
		return cc.Response{}, nil
	}
}

func (m *Memory) AddResponseListener(kind cc.Kind, fn cc.ResponseListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[kind] = fn
}

func (m *Memory) SetReconnectListener(fn func(*cc.ReconnectMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectFn = fn
}

func (m *Memory) SetDisconnectionListener(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectFn = fn
}

func (m *Memory) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Memory) GetTimeouts() cc.Timeouts { return m.timeouts }

// Disconnect simulates a lost session: it flips IsConnected to false
// and fires the registered disconnection listener.
func (m *Memory) Disconnect() {
	m.mu.Lock()
	m.connected = false
	fn := m.disconnectFn
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Reconnect simulates session re-establishment: it flips IsConnected
// back to true and runs the registered reconnect listener over a fresh
// ReconnectMessage, returning what it was populated with.
func (m *Memory) Reconnect() cc.ReconnectMessage {
	m.mu.Lock()
	m.connected = true
	fn := m.reconnectFn
	m.mu.Unlock()

	var msg cc.ReconnectMessage
	if fn != nil {
		fn(&msg)
	}
	return msg
}

// FireHashInvalidationDone delivers a KindHashInvalidationDone
// notification for key, releasing any StrongProxy barrier waiting on
// it.
func (m *Memory) FireHashInvalidationDone(key cc.Key) {
	m.deliver(cc.KindHashInvalidationDone, cc.Response{Kind: cc.KindHashInvalidationDone, Key: key})
}

// FireAllInvalidationDone delivers a KindAllInvalidationDone
// notification, releasing any outstanding clear barrier.
func (m *Memory) FireAllInvalidationDone() {
	m.deliver(cc.KindAllInvalidationDone, cc.Response{Kind: cc.KindAllInvalidationDone})
}

// FireServerInvalidateHash simulates the server advisory-invalidating
// key on its own initiative (no ack required).
func (m *Memory) FireServerInvalidateHash(key cc.Key) {
	m.deliver(cc.KindServerInvalidateHash, cc.Response{Kind: cc.KindServerInvalidateHash, Key: key})
}

// FireClientInvalidateHash simulates a peer's mutation requiring this
// client to invalidate key and ack back invalidationID.
func (m *Memory) FireClientInvalidateHash(key cc.Key) int64 {
	id := m.allocInvID()
	m.deliver(cc.KindClientInvalidateHash, cc.Response{Kind: cc.KindClientInvalidateHash, Key: key, InvalidationID: id})
	return id
}

// FireClientInvalidateAll simulates a peer's clear requiring this
// client to invalidate everything and ack back invalidationID.
func (m *Memory) FireClientInvalidateAll() int64 {
	id := m.allocInvID()
	m.deliver(cc.KindClientInvalidateAll, cc.Response{Kind: cc.KindClientInvalidateAll, InvalidationID: id})
	return id
}

func (m *Memory) allocInvID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextInvID++
	return m.nextInvID
}
