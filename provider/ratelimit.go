package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// rateLimitState pauses all workers of a client while the provider is
// rate-limiting. One worker hitting a 429 parks every sibling until the
// advertised delay has elapsed, instead of each worker burning its own
// retry budget against the same window.
type rateLimitState struct {
	mu       sync.Mutex
	paused   atomic.Bool
	pauseEnd time.Time
}

func (r *rateLimitState) pause(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := time.Now().Add(d)
	if end.After(r.pauseEnd) {
		r.pauseEnd = end
	}
	r.paused.Store(true)
}

func (r *rateLimitState) unpause() {
	r.paused.Store(false)
}

// waitIfPaused blocks until the pause window is over or ctx is done.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.paused.Load() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		wait := remaining
		if wait > 100*time.Millisecond {
			wait = 100 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
