package persist

import (
	"context"
	"sync"
	"time"
)

// RetryTimeout bounds one background reload.
const RetryTimeout = 10 * time.Second

// Hydration tracks a store whose initial load failed. Until a load succeeds
// the store must not write, or it would replace the record it could not
// read. Retry starts at most one background reload at a time.
type Hydration struct {
	mu      sync.Mutex
	failed  bool
	running bool
	wg      sync.WaitGroup
}

// Failed records a load error; the next Retry reloads.
func (h *Hydration) Failed() {
	h.mu.Lock()
	h.failed = true
	h.mu.Unlock()
}

// Retry runs load in the background when the last load failed and no reload
// is already running.
func (h *Hydration) Retry(load func(ctx context.Context) error) {
	h.mu.Lock()
	if !h.failed || h.running {
		h.mu.Unlock()
		return
	}
	h.failed = false
	h.running = true
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), RetryTimeout)
		defer cancel()
		_ = load(ctx)
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()
}

// Wait blocks until background reloads finish.
func (h *Hydration) Wait() {
	h.wg.Wait()
}
