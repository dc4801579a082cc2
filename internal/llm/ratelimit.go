package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultRequestsPerMinute applies when no rate limit is configured.
const defaultRequestsPerMinute = 60

// rateLimiter is a token bucket refilled one token at a time.
type rateLimiter struct {
	stopCh    chan struct{}
	stopOnce  sync.Once
	tokens    int
	capacity  int
	interval  time.Duration
	pollEvery time.Duration
	mu        sync.Mutex
}

// newRateLimiter creates a limiter allowing requestsPerMinute calls, with a
// full bucket available immediately.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}

	interval := time.Minute / time.Duration(requestsPerMinute)
	rl := &rateLimiter{
		tokens:    requestsPerMinute,
		capacity:  requestsPerMinute,
		interval:  interval,
		pollEvery: min(interval, 100*time.Millisecond),
		stopCh:    make(chan struct{}),
	}

	go rl.refill()

	return rl
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	if rl.tryAcquire() {
		return nil
	}

	ticker := time.NewTicker(rl.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
			if rl.tryAcquire() {
				return nil
			}
		}
	}
}

// tryAcquire takes a token without blocking.
func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *rateLimiter) available() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens
}

func (rl *rateLimiter) refill() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			if rl.tokens < rl.capacity {
				rl.tokens++
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the refill goroutine. It is safe to call more than once.
func (rl *rateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}
