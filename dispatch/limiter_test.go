package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_PacesBudget(t *testing.T) {
	limiter := NewLimiter(10, 0, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, limiter.Do(ctx, func() error { return nil }))
	}
	elapsed := time.Since(start)

	// 20 sends at 10/s must take close to two seconds
	require.GreaterOrEqual(t, elapsed, 1800*time.Millisecond)
}

func TestLimiter_FirstSecondStaysUnderBudget(t *testing.T) {
	limiter := NewLimiter(10, 0, 1)
	ctx := context.Background()

	start := time.Now()
	sent := 0
	for time.Since(start) < time.Second {
		if err := limiter.Do(ctx, func() error { return nil }); err != nil {
			break
		}
		sent++
	}

	require.LessOrEqual(t, sent, 11)
}

func TestLimiter_MinSpacing(t *testing.T) {
	limiter := NewLimiter(1000, 50*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Do(ctx, func() error { return nil }))
	}

	// 4 gaps of at least 50ms between 5 calls
	require.GreaterOrEqual(t, time.Since(start), 190*time.Millisecond)
}

func TestLimiter_CancelledContext(t *testing.T) {
	limiter := NewLimiter(1, 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, limiter.Do(ctx, func() error { return nil }))

	cancel()
	err := limiter.Do(ctx, func() error { return nil })
	require.Error(t, err)
}

func TestLimiter_ConcurrencySerializes(t *testing.T) {
	limiter := NewLimiter(1000, 0, 1)
	ctx := context.Background()

	inFlight := 0
	maxInFlight := 0
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		go func() {
			_ = limiter.Do(ctx, func() error {
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				time.Sleep(5 * time.Millisecond)
				inFlight--
				return nil
			})
			done <- struct{}{}
		}()
	}

	for i := 0; i < 5; i++ {
		<-done
	}

	require.Equal(t, 1, maxInFlight)
}
