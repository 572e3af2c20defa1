// Package debounce delays a call until input pauses.
package debounce

import (
	"sync"
	"time"
)

// Debouncer holds at most one pending call. Each Trigger cancels the pending
// call and schedules a new one.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	seq     uint64
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger replaces the pending call with fn, to run after the delay.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// fire runs the call scheduled as seq unless it was replaced or flushed.
func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || d.pending == nil {
		d.mu.Unlock()
		return
	}
	fn := d.take()
	d.mu.Unlock()
	fn()
}

// Flush runs the pending call now, on the caller's goroutine. It reports
// whether there was one.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.pending == nil {
		d.mu.Unlock()
		return false
	}
	fn := d.take()
	d.mu.Unlock()
	fn()
	return true
}

// Stop drops the pending call.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return false
	}
	d.take()
	return true
}

// Pending reports whether a call is waiting.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// take clears the slot; d.mu must be held.
func (d *Debouncer) take() func() {
	fn := d.pending
	d.pending = nil
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return fn
}
