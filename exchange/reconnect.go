package exchange

import (
	"context"
	"time"
)

// reconnectStep is the linear backoff unit between reconnect attempts.
const reconnectStep = time.Second

// ReconnectDelay returns the delay before the given reconnect attempt.
// The policy is linear: attempt * 1s.
func ReconnectDelay(attempt int) time.Duration {
	return time.Duration(attempt) * reconnectStep
}

// WaitReconnect sleeps the linear backoff for the given attempt as a
// cancellable delayed task. It reports false when the context was
// cancelled, so a torn-down shard never races a fresh subscription.
func WaitReconnect(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(ReconnectDelay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
