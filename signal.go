package clustercache

import (
	"sync"
	"time"
)

// signal is a single-shot latch: it transitions irrevocably from
// un-fired to fired, and any number of waiters observe the same edge.
// It plays the role java.util.concurrent.CountDownLatch(1) fills in the
// original source.
type signal struct {
	once sync.Once
	done chan struct{}
}

func newSignal() *signal {
	return &signal{done: make(chan struct{})}
}

// fire releases all current and future waiters. Safe to call more than
// once; only the first call has effect.
func (s *signal) fire() {
	s.once.Do(func() { close(s.done) })
}

// wait blocks until the signal fires, the deadline elapses, or abort
// fires first (used to unblock waiters promptly on disconnect). It
// returns true iff the signal itself fired before the deadline and
// before abort.
func (s *signal) wait(deadline time.Time, abort <-chan struct{}) bool {
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if d := time.Until(deadline); d > 0 {
		timer = time.NewTimer(d)
		timeoutCh = timer.C
	} else {
		// already past deadline: still give fire/abort a non-blocking
		// chance to have already happened, then time out.
		timeoutCh = closedTimeCh
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	select {
	case <-s.done:
		return true
	case <-abort:
		return false
	case <-timeoutCh:
		return false
	}
}

var closedTimeCh = func() <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()
