package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("full bucket then refill", func(t *testing.T) {
		// 60 rpm refills one token a second.
		rl := newRateLimiter(60)
		t.Cleanup(rl.Close)
		ctx := context.Background()

		for i := 0; i < 60; i++ {
			require.True(t, rl.tryAcquire(), "token %d", i)
		}
		require.False(t, rl.tryAcquire())

		start := time.Now()
		require.NoError(t, rl.wait(ctx))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "expected to wait for a refill")
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		t.Cleanup(rl.Close)

		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() {
			done <- rl.wait(ctx)
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		err := <-done
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "rate limiter canceled")
	})

	t.Run("default rate limit", func(t *testing.T) {
		rl := newRateLimiter(0)
		t.Cleanup(rl.Close)

		assert.Equal(t, defaultRequestsPerMinute, rl.available())
	})

	t.Run("concurrent access", func(t *testing.T) {
		rl := newRateLimiter(100)
		t.Cleanup(rl.Close)
		ctx := context.Background()

		var acquired atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if err := rl.wait(ctx); err == nil {
						acquired.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(100), acquired.Load())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		rl := newRateLimiter(10)
		rl.Close()
		assert.NotPanics(t, rl.Close)
	})
}
