// Package debounce coalesces bursts of triggers into a single deferred call
// and lets callers wait for the call that covers their trigger.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is reported by batches that were pending when the debouncer
// stopped.
var ErrStopped = errors.New("debounce: stopped")

// Batch is one scheduled invocation. Every trigger that lands before the
// invocation runs shares the same batch.
type Batch struct {
	done chan struct{}
	err  error
}

func newBatch() *Batch {
	return &Batch{done: make(chan struct{})}
}

func settledBatch(err error) *Batch {
	b := newBatch()
	b.settle(err)
	return b
}

func (b *Batch) settle(err error) {
	b.err = err
	close(b.done)
}

// Done is closed once the invocation finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Err returns the invocation error. It is only meaningful after Done.
func (b *Batch) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Wait blocks until the batch settles or ctx is done.
func (b *Batch) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Debouncer runs fn once delay has passed without a new trigger. Calls to
// fn never overlap: a batch that comes due while fn runs waits for it.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func() error
	timer   *time.Timer
	gen     uint64
	pending *Batch
	running *Batch
	last    *Batch
	rearm   bool
	stopped bool
}

// New builds a debouncer. A non-positive delay still defers fn to the timer
// goroutine.
func New(delay time.Duration, fn func() error) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Delay returns the configured quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger pushes the pending invocation back by the delay and returns the
// batch it belongs to.
func (d *Debouncer) Trigger() *Batch {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return settledBatch(ErrStopped)
	}
	if d.pending == nil {
		d.pending = newBatch()
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
	return d.pending
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// a timer that lost the race with Stop or a later Trigger
	if d.stopped || gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if d.running != nil {
		d.rearm = true
		d.mu.Unlock()
		return
	}
	batch := d.pending
	d.pending = nil
	d.running = batch
	d.mu.Unlock()

	var err error
	if d.fn != nil {
		err = d.fn()
	}

	d.mu.Lock()
	d.running = nil
	d.last = batch
	if d.rearm {
		d.rearm = false
		d.scheduleLocked()
	}
	d.mu.Unlock()
	batch.settle(err)
}

// scheduleLocked starts the timer for a pending batch that came due while
// fn was running, unless a later trigger already did.
func (d *Debouncer) scheduleLocked() {
	if d.stopped || d.pending == nil || d.timer != nil {
		return
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending returns the batch a caller should wait on: the scheduled one, the
// one currently running, or the last one that settled.
func (d *Debouncer) Pending() *Batch {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.pending != nil:
		return d.pending
	case d.running != nil:
		return d.running
	case d.last != nil:
		return d.last
	default:
		return settledBatch(nil)
	}
}

// Stop cancels the scheduled invocation. Its batch settles with ErrStopped;
// an invocation already running is left to finish.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.pending != nil {
		d.pending.settle(ErrStopped)
		d.pending = nil
	}
}
