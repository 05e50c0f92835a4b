// Package dispatch turns pump events into rate-limited notification sends.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter gates calls against an external API with a hard rate ceiling.
// It combines a per-second call budget, a minimum spacing between calls,
// and a concurrency cap. Limiters are shared by reference: one limiter per
// destination API, passed to every caller.
//
// Units: budget is calls per rolling second, spacing is the minimum gap
// between consecutive acquisitions, concurrency is in-flight calls.
type Limiter struct {
	budget  *rate.Limiter
	spacing *rate.Limiter
	slots   *semaphore.Weighted
}

// NewLimiter creates a limiter with the given budget. A concurrency of 1
// serializes all calls, which is what external APIs with strict ceilings
// expect.
func NewLimiter(callsPerSecond float64, minSpacing time.Duration, concurrency int64) *Limiter {
	l := &Limiter{
		budget: rate.NewLimiter(rate.Limit(callsPerSecond), 1),
		slots:  semaphore.NewWeighted(concurrency),
	}
	if minSpacing > 0 {
		l.spacing = rate.NewLimiter(rate.Every(minSpacing), 1)
	}
	return l
}

// Acquire blocks until a concurrency slot and the rate budget are both
// available, or the context is cancelled. Every successful Acquire must be
// paired with Release once the guarded call finishes.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return err
	}

	if err := l.budget.Wait(ctx); err != nil {
		l.slots.Release(1)
		return err
	}

	if l.spacing != nil {
		if err := l.spacing.Wait(ctx); err != nil {
			l.slots.Release(1)
			return err
		}
	}

	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (l *Limiter) Release() {
	l.slots.Release(1)
}

// Do runs fn under the limiter.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
