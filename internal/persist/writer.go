// Package persist serializes best-effort background writes of whole-collection
// snapshots.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WriteTimeout bounds one save call.
const WriteTimeout = 5 * time.Second

// SaveFunc writes one complete snapshot.
type SaveFunc[T any] func(ctx context.Context, v T) error

// Writer owns a single goroutine that saves queued snapshots in order.
// Snapshots queued while a save is running are coalesced: only the latest is
// written next. Save failures are logged; the following Queue writes again.
type Writer[T any] struct {
	name   string
	save   SaveFunc[T]
	logger *slog.Logger

	mu       sync.Mutex
	latest   T
	dirty    bool
	queued   uint64
	written  uint64
	progress chan struct{}
	closed   bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func NewWriter[T any](name string, save SaveFunc[T], logger *slog.Logger) *Writer[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Writer[T]{
		name:     name,
		save:     save,
		logger:   logger,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Queue schedules v to be written. v must not be mutated afterwards. Calls
// made after Close are dropped.
func (w *Writer[T]) Queue(v T) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("dropping write after close", "record", w.name)
		return
	}
	w.latest = v
	w.dirty = true
	w.queued++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every snapshot queued before the call has been handed
// to the save function, or ctx ends.
func (w *Writer[T]) Flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.queued
	w.mu.Unlock()
	for {
		w.mu.Lock()
		if w.written >= target {
			w.mu.Unlock()
			return nil
		}
		ch := w.progress
		w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close writes any pending snapshot and stops the goroutine.
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done
	return nil
}

func (w *Writer[T]) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.writeLatest()
		case <-w.quit:
			w.writeLatest()
			return
		}
	}
}

func (w *Writer[T]) writeLatest() {
	w.mu.Lock()
	if !w.dirty {
		w.mu.Unlock()
		return
	}
	v := w.latest
	seq := w.queued
	w.dirty = false
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
	err := w.save(ctx, v)
	cancel()
	if err != nil {
		w.logger.Error("persist record", "record", w.name, "error", err)
	} else {
		w.logger.Debug("persisted record", "record", w.name)
	}

	w.mu.Lock()
	w.written = seq
	close(w.progress)
	w.progress = make(chan struct{})
	w.mu.Unlock()
}
