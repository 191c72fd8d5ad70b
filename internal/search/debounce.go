package search

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer emits the latest pushed value once Delay has passed without
// another Push (trailing debounce).
type Debouncer[T any] struct {
	delay     time.Duration
	emit      func(T)
	afterFunc AfterFunc

	mu      sync.Mutex
	timer   Timer
	pending bool
	value   T
	seq     uint64
}

func NewDebouncer[T any](delay time.Duration, emit func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, emit: emit, afterFunc: realAfterFunc}
}

// SetAfterFunc replaces the timer factory. Intended for tests.
func (d *Debouncer[T]) SetAfterFunc(fn AfterFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.afterFunc = fn
}

// Push records v as the latest value and restarts the delay.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.value = v
	d.pending = true
	d.timer = d.afterFunc(d.delay, func() { d.fire(seq) })
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	// A superseded timer may still fire if Stop lost the race.
	if seq != d.seq || !d.pending {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.timer = nil
	d.mu.Unlock()
	d.emit(v)
}

// Flush emits the pending value immediately, if any.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	v := d.value
	d.pending = false
	d.mu.Unlock()
	d.emit(v)
}

// Stop cancels the pending value without emitting it.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
}

func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
