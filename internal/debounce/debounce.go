// Package debounce turns a rapidly-changing text value into a stable,
// delayed value plus a pending flag. Trailing edge only: each Set restarts
// the delay, and when the timer fires uninterrupted the latest value is
// published. Intermediate values are never queued or published.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the idle window used when no delay is configured.
const DefaultDelay = 500 * time.Millisecond

// Debouncer publishes the most recent value passed to Set once the value
// has been stable for the configured delay.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	publish func(string)
	timer   *time.Timer
	latest  string
	pending bool
	stopped bool
}

// New creates a Debouncer that calls publish with the settled value.
// publish is invoked from the timer goroutine, never while the Debouncer's
// lock is held.
func New(delay time.Duration, publish func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay, publish: publish}
}

// Set records a new raw value, marks the debouncer pending and restarts the
// delay timer. A value arriving before the previous timer fires cancels it.
func (d *Debouncer) Set(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.latest = value
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	value := d.latest
	d.pending = false
	d.mu.Unlock()

	d.publish(value)
}

// Pending reports whether a value is waiting out its idle window.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Cancel discards any pending value without publishing it. The debouncer
// remains usable.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}

// Stop cancels any outstanding timer and permanently disables the
// debouncer, so nothing is published into a disposed consumer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
	d.stopped = true
}
