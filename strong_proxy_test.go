package clustercache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cc "github.com/unkn0wn-root/clustercache"
	"github.com/unkn0wn-root/clustercache/transport/memory"
)

type recordingListener struct {
	mu        sync.Mutex
	hashCalls []cc.Key
	allCalls  int
}

func (l *recordingListener) OnInvalidateHash(key cc.Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hashCalls = append(l.hashCalls, key)
}

func (l *recordingListener) OnInvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allCalls++
}

func (l *recordingListener) hashCallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hashCalls)
}

func (l *recordingListener) allCallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allCalls
}

func newTestProxy(t *testing.T, timeouts cc.Timeouts) (*cc.StrongProxy, *memory.Memory, *recordingListener) {
	t.Helper()
	if timeouts == (cc.Timeouts{}) {
		timeouts = cc.Timeouts{Read: time.Second, Mutative: time.Second}
	}
	tr := memory.New(timeouts)
	lst := &recordingListener{}
	sp := cc.NewStrongProxy("test-cache", tr, lst, nil, nil)
	return sp, tr, lst
}

func TestStrongProxy_AppendWaitsForInvalidation(t *testing.T) {
	ctx := context.Background()
	sp, _, _ := newTestProxy(t, cc.Timeouts{})

	if err := sp.Append(ctx, 1, []byte("a")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	chain, err := sp.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	links := chain.Links()
	if len(links) != 1 || string(links[0]) != "a" {
		t.Fatalf("unexpected chain contents: %v", links)
	}
}

func TestStrongProxy_GetDoesNotBlockDuringOutstandingBarrier(t *testing.T) {
	ctx := context.Background()
	sp, tr, _ := newTestProxy(t, cc.Timeouts{})
	tr.SetAutoInvalidate(false)

	done := make(chan error, 1)
	go func() { done <- sp.Append(ctx, 1, []byte("a")) }()
	time.Sleep(20 * time.Millisecond)

	// The append's barrier is outstanding (auto-invalidate disabled).
	// Get must pass straight through the delegate, never touching the
	// barrier table.
	gctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if _, err := sp.Get(gctx, 1); err != nil {
		t.Fatalf("Get should not block on outstanding barrier: %v", err)
	}

	tr.FireHashInvalidationDone(1)
	if err := <-done; err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestStrongProxy_ConcurrentSameKeyMutationsSerialize(t *testing.T) {
	ctx := context.Background()
	sp, _, _ := newTestProxy(t, cc.Timeouts{})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sp.Append(ctx, 42, []byte{byte(i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Append[%d]: %v", i, err)
		}
	}

	chain, err := sp.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(chain.Links()) != n {
		t.Fatalf("expected %d links, got %d", n, len(chain.Links()))
	}
}

func TestStrongProxy_TimeoutWhenInvalidationNeverArrives(t *testing.T) {
	ctx := context.Background()
	sp, tr, _ := newTestProxy(t, cc.Timeouts{Read: 50 * time.Millisecond, Mutative: 50 * time.Millisecond})
	tr.SetAutoInvalidate(false)

	err := sp.Append(ctx, 7, []byte("x"))
	if !errors.Is(err, cc.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestStrongProxy_DisconnectDuringWaitUnblocksWithErrDisconnected(t *testing.T) {
	ctx := context.Background()
	sp, tr, _ := newTestProxy(t, cc.Timeouts{Read: time.Second, Mutative: time.Second})
	tr.SetAutoInvalidate(false)

	done := make(chan error, 1)
	go func() { done <- sp.Append(ctx, 9, []byte("x")) }()

	time.Sleep(20 * time.Millisecond)
	tr.Disconnect()

	select {
	case err := <-done:
		if !errors.Is(err, cc.ErrDisconnected) {
			t.Fatalf("expected ErrDisconnected, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Append did not unblock after disconnect")
	}
}

func TestStrongProxy_ReconnectAdvertisesPendingKeys(t *testing.T) {
	ctx := context.Background()
	sp, tr, _ := newTestProxy(t, cc.Timeouts{Read: time.Second, Mutative: time.Second})
	tr.SetAutoInvalidate(false)

	done := make(chan error, 1)
	go func() { done <- sp.Append(ctx, 11, []byte("x")) }()
	time.Sleep(20 * time.Millisecond)

	tr.Disconnect()
	if err := <-done; !errors.Is(err, cc.ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}

	msg := tr.Reconnect()
	if msg.ClearInProgress {
		t.Fatalf("clear was not in progress")
	}
	// The barrier drains on disconnect, so the reconnect handshake
	// carries no leftover keys from the aborted call.
	if len(msg.InvalidationsInProgress) != 0 {
		t.Fatalf("expected no pending keys after a drained disconnect, got %v", msg.InvalidationsInProgress)
	}
}

func TestStrongProxy_ClearUsesIndependentBarrierFromHashInvalidation(t *testing.T) {
	ctx := context.Background()
	sp, tr, _ := newTestProxy(t, cc.Timeouts{})
	tr.SetAutoInvalidate(false)

	appendDone := make(chan error, 1)
	go func() { appendDone <- sp.Append(ctx, 1, []byte("a")) }()
	time.Sleep(20 * time.Millisecond)

	clearDone := make(chan error, 1)
	go func() { clearDone <- sp.Clear(ctx) }()
	time.Sleep(20 * time.Millisecond)

	// Releasing the clear barrier must not release the unrelated
	// per-key append barrier, and vice versa.
	tr.FireAllInvalidationDone()
	select {
	case err := <-clearDone:
		if err != nil {
			t.Fatalf("Clear: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Clear did not unblock")
	}

	select {
	case err := <-appendDone:
		t.Fatalf("Append unblocked by the wrong barrier release: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	tr.FireHashInvalidationDone(1)
	select {
	case err := <-appendDone:
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Append did not unblock")
	}
}

func TestStrongProxy_PeerInvalidationRequiresAck(t *testing.T) {
	sp, tr, lst := newTestProxy(t, cc.Timeouts{})
	_ = sp

	tr.FireClientInvalidateHash(5)

	deadline := time.Now().Add(time.Second)
	for lst.hashCallCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if lst.hashCallCount() != 1 {
		t.Fatalf("expected invalidation listener to be notified once, got %d", lst.hashCallCount())
	}
	if got := tr.HashAckCount(); got != 1 {
		t.Fatalf("expected one OpClientInvalidationAck to be sent, got %d", got)
	}
}
