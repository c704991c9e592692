package mirror

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of triggers into one signal on C, delivered
// once no trigger has arrived for the delay.
type debouncer struct {
	delay time.Duration
	C     chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay: delay,
		C:     make(chan struct{}, 1),
	}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debouncer) fire() {
	select {
	case d.C <- struct{}{}:
	default:
		// Already signalled.
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
