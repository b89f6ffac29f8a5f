package reconnect

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeEntity struct {
	connected atomic.Bool
}

func (e *fakeEntity) IsConnected() bool { return e.connected.Load() }

type fakeHandle struct {
	calls atomic.Int32
}

func (h *fakeHandle) OnReconnect() { h.calls.Add(1) }

func TestSupervisor_FiresOnceWhenAllEntitiesDisconnect(t *testing.T) {
	a, b := &fakeEntity{}, &fakeEntity{}
	a.connected.Store(true)
	b.connected.Store(true)

	handle := &fakeHandle{}
	sup := New(handle, []Entity{a, b}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() { sup.Run(ctx); close(runDone) }()

	time.Sleep(30 * time.Millisecond)
	if handle.calls.Load() != 0 {
		t.Fatalf("OnReconnect fired before every entity disconnected")
	}

	a.connected.Store(false)
	time.Sleep(30 * time.Millisecond)
	if handle.calls.Load() != 0 {
		t.Fatalf("OnReconnect fired while one entity is still connected")
	}

	b.connected.Store(false)

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after every entity disconnected")
	}
	if handle.calls.Load() != 1 {
		t.Fatalf("expected OnReconnect exactly once, got %d", handle.calls.Load())
	}
	if !sup.IsComplete() {
		t.Fatalf("expected IsComplete true")
	}
}

func TestSupervisor_FiresImmediatelyWithNoEntities(t *testing.T) {
	handle := &fakeHandle{}
	sup := New(handle, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() { sup.Run(ctx); close(runDone) }()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return with no entities to watch")
	}
	if handle.calls.Load() != 1 {
		t.Fatalf("expected OnReconnect exactly once, got %d", handle.calls.Load())
	}
	if !sup.IsComplete() {
		t.Fatalf("expected IsComplete true")
	}
}

func TestSupervisor_StopsOnContextCancelWithoutFiring(t *testing.T) {
	a := &fakeEntity{}
	a.connected.Store(true)
	handle := &fakeHandle{}
	sup := New(handle, []Entity{a}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() { sup.Run(ctx); close(runDone) }()

	cancel()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
	if handle.calls.Load() != 0 {
		t.Fatalf("OnReconnect should not have fired")
	}
}
