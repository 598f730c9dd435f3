package scene

import (
	"sync"
	"time"
)

const defaultFrameBudget = 16 * time.Millisecond

// repaintScheduler coalesces repaint requests: the first request in a frame
// budget schedules one flush, further requests ride along. After stop
// returns, the flush callback is guaranteed not to start again.
type repaintScheduler struct {
	mu      sync.Mutex
	budget  time.Duration
	fire    func()
	timer   *time.Timer
	pending bool
	stopped bool
}

func newRepaintScheduler(budget time.Duration, fire func()) *repaintScheduler {
	if budget <= 0 {
		budget = defaultFrameBudget
	}
	return &repaintScheduler{budget: budget, fire: fire}
}

func (r *repaintScheduler) request() {
	r.mu.Lock()
	if r.stopped || r.pending {
		r.mu.Unlock()
		return
	}
	r.pending = true
	r.timer = time.AfterFunc(r.budget, r.flush)
	r.mu.Unlock()
}

func (r *repaintScheduler) flush() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.pending = false
	r.mu.Unlock()
	r.fire()
}

func (r *repaintScheduler) stop() {
	r.mu.Lock()
	r.stopped = true
	r.pending = false
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
}
