package scene

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRepaintCoalesces(t *testing.T) {
	var fires atomic.Int32
	r := newRepaintScheduler(20*time.Millisecond, func() { fires.Add(1) })

	for i := 0; i < 5; i++ {
		r.request()
	}
	time.Sleep(100 * time.Millisecond)

	if got := fires.Load(); got != 1 {
		t.Errorf("5 requests in one budget fired %d times, want 1", got)
	}

	r.request()
	time.Sleep(100 * time.Millisecond)
	if got := fires.Load(); got != 2 {
		t.Errorf("request after flush fired %d times total, want 2", got)
	}
}

func TestRepaintStopCancelsPending(t *testing.T) {
	var fires atomic.Int32
	r := newRepaintScheduler(30*time.Millisecond, func() { fires.Add(1) })

	r.request()
	r.stop()
	time.Sleep(100 * time.Millisecond)

	if got := fires.Load(); got != 0 {
		t.Errorf("stop must cancel the pending flush, fired %d times", got)
	}
}

func TestRepaintRequestAfterStopIsIgnored(t *testing.T) {
	var fires atomic.Int32
	r := newRepaintScheduler(5*time.Millisecond, func() { fires.Add(1) })

	r.stop()
	r.request()
	time.Sleep(50 * time.Millisecond)

	if got := fires.Load(); got != 0 {
		t.Errorf("request after stop fired %d times, want 0", got)
	}
}

func TestRepaintStopIsIdempotent(t *testing.T) {
	r := newRepaintScheduler(0, func() {})
	r.stop()
	r.stop()
}
