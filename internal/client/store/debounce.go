package store

import (
	"sync"
	"time"
)

// DebounceDelay is the pause after the last keystroke before a search runs.
const DebounceDelay = 400 * time.Millisecond

// SearchDebouncer collapses bursts of Input calls into one apply call with the last term.
type SearchDebouncer struct {
	delay time.Duration
	apply func(term string)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending string
	armed   bool
	// applying is held while apply runs; it is always taken after mu.
	applying sync.Mutex
}

func NewSearchDebouncer(delay time.Duration, apply func(term string)) *SearchDebouncer {
	if delay <= 0 {
		delay = DebounceDelay
	}
	return &SearchDebouncer{delay: delay, apply: apply}
}

func (d *SearchDebouncer) Input(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending, d.armed = term, true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

func (d *SearchDebouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || !d.armed {
		d.mu.Unlock()
		return
	}
	term := d.pending
	d.armed = false
	d.applying.Lock()
	d.mu.Unlock()
	defer d.applying.Unlock()
	d.apply(term)
}

// Flush runs a pending apply now, on the caller's goroutine, after waiting
// for one the timer already started. It reports whether anything was pending.
func (d *SearchDebouncer) Flush() bool {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	term, armed := d.pending, d.armed
	d.armed = false
	d.applying.Lock()
	d.mu.Unlock()
	defer d.applying.Unlock()
	if armed {
		d.apply(term)
	}
	return armed
}

// Stop cancels a pending apply.
func (d *SearchDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed = false
}
