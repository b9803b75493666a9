package retry

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum spacing between successive calls. The
// marker is stamped after fn completes, so a slow call absorbs part or all
// of the next call's enforced gap.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewRateLimiter builds a limiter allowing requestsPerSecond calls per
// second. Non-positive rates fall back to one call per second.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &RateLimiter{
		interval: time.Duration(float64(time.Second) / requestsPerSecond),
	}
}

// Execute sleeps until the minimum interval since the previous completion
// has elapsed, then invokes fn and records its completion time.
func (l *RateLimiter) Execute(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	last := l.last
	l.mu.Unlock()

	if !last.IsZero() {
		if wait := l.interval - time.Since(last); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	err := fn()

	l.mu.Lock()
	l.last = time.Now()
	l.mu.Unlock()
	return err
}

// Reset clears the completion marker so the next call runs unthrottled.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	l.last = time.Time{}
	l.mu.Unlock()
}
