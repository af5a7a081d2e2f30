package dashboard

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one.
// Each Trigger returns a channel that receives exactly one value: true for
// the call that survives the quiet period, false for every superseded call.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending chan bool
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger supersedes any pending call and starts a new quiet period
func (d *Debouncer) Trigger() <-chan bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelLocked()

	ch := make(chan bool, 1)
	d.pending = ch
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.pending == ch {
			d.pending = nil
			d.timer = nil
			ch <- true
		}
	})
	return ch
}

// Stop supersedes the pending call, if any
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.pending != nil {
		d.pending <- false
		d.pending = nil
	}
}
