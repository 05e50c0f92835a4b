// Package openinterest keeps a periodically refreshed view of the open
// interest of derivative symbols, used to enrich pump alerts.
package openinterest

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/dispatch"
)

// Per-exchange REST budgets. Values stay below the documented request
// weight limits with headroom for the trade stream control calls.
var limiterBudgets = map[core.Platform]struct {
	callsPerSecond float64
	minSpacing     time.Duration
	concurrency    int64
}{
	core.PlatformBinance: {callsPerSecond: 19, minSpacing: 40 * time.Millisecond, concurrency: 1},
	core.PlatformBybit:   {callsPerSecond: 9, minSpacing: 40 * time.Millisecond, concurrency: 1},
}

type snapshotKey struct {
	platform core.Platform
	symbol   string
}

// Poller polls open interest for a set of symbols per platform and
// serves the latest snapshot of each.
type Poller struct {
	interval time.Duration
	fetchers map[core.Platform]Fetcher
	limiters map[core.Platform]*dispatch.Limiter
	log      core.Logger

	mu        sync.RWMutex
	snapshots map[snapshotKey]core.OpenInterestSnapshot
	cancels   map[core.Platform]context.CancelFunc
	loops     sync.WaitGroup
}

// NewPoller creates a poller refreshing every interval using the given
// fetchers. Platforms without a configured budget are polled without a
// per-second cap, keeping only the spacing and concurrency limits.
func NewPoller(interval time.Duration, log core.Logger, fetchers ...Fetcher) *Poller {
	p := &Poller{
		interval:  interval,
		fetchers:  make(map[core.Platform]Fetcher),
		limiters:  make(map[core.Platform]*dispatch.Limiter),
		log:       log,
		snapshots: make(map[snapshotKey]core.OpenInterestSnapshot),
		cancels:   make(map[core.Platform]context.CancelFunc),
	}

	for _, fetcher := range fetchers {
		platform := fetcher.Platform()
		p.fetchers[platform] = fetcher

		budget, ok := limiterBudgets[platform]
		if !ok {
			budget.callsPerSecond = 5
			budget.minSpacing = 40 * time.Millisecond
			budget.concurrency = 1
		}
		p.limiters[platform] = dispatch.NewLimiter(budget.callsPerSecond, budget.minSpacing, budget.concurrency)
	}

	return p
}

// Supports reports whether a fetcher exists for the platform.
func (p *Poller) Supports(platform core.Platform) bool {
	_, ok := p.fetchers[platform]
	return ok
}

// StartPolling begins polling the given symbols on platform, replacing
// any loop already running for it. An empty symbol list only stops the
// current loop.
func (p *Poller) StartPolling(ctx context.Context, platform core.Platform, symbols []string) {
	fetcher, ok := p.fetchers[platform]
	if !ok {
		p.log.Warnf("open interest: no fetcher for platform %s", platform)
		return
	}

	p.mu.Lock()
	if cancel, running := p.cancels[platform]; running {
		cancel()
		delete(p.cancels, platform)
	}
	if len(symbols) == 0 {
		p.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancels[platform] = cancel
	p.mu.Unlock()

	p.loops.Add(1)
	go p.pollLoop(loopCtx, fetcher, symbols)
}

// Stop cancels every polling loop and waits for them to drain.
func (p *Poller) Stop() {
	p.mu.Lock()
	for platform, cancel := range p.cancels {
		cancel()
		delete(p.cancels, platform)
	}
	p.mu.Unlock()
	p.loops.Wait()
}

// Snapshot implements core.OpenInterestSource.
func (p *Poller) Snapshot(platform core.Platform, symbol string) (core.OpenInterestSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snapshot, ok := p.snapshots[snapshotKey{platform: platform, symbol: symbol}]
	return snapshot, ok
}

func (p *Poller) pollLoop(ctx context.Context, fetcher Fetcher, symbols []string) {
	defer p.loops.Done()

	retry := &backoff.Backoff{
		Min:    5 * time.Second,
		Max:    time.Minute,
		Factor: 2,
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		fetched := p.fetchCycle(ctx, fetcher, symbols)
		if ctx.Err() != nil {
			return
		}

		if fetched == 0 {
			delay := retry.Duration()
			p.log.WithFields(map[string]any{
				"platform": fetcher.Platform(),
				"retry_in": delay,
			}).Warn("open interest cycle failed for every symbol")

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		retry.Reset()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fetchCycle refreshes every symbol once and reports how many succeeded.
func (p *Poller) fetchCycle(ctx context.Context, fetcher Fetcher, symbols []string) int {
	platform := fetcher.Platform()
	limiter := p.limiters[platform]
	fetched := 0

	for _, symbol := range symbols {
		err := limiter.Do(ctx, func() error {
			value, err := fetcher.OpenInterest(ctx, symbol)
			if err != nil {
				return err
			}
			p.store(platform, symbol, value)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return fetched
			}
			p.log.WithError(err).
				WithFields(map[string]any{"platform": platform, "symbol": symbol}).
				Debug("open interest fetch failed")
			continue
		}
		fetched++
	}

	return fetched
}

func (p *Poller) store(platform core.Platform, symbol string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := snapshotKey{platform: platform, symbol: symbol}
	next := core.OpenInterestSnapshot{
		Symbol:    symbol,
		Current:   value,
		UpdatedAt: time.Now(),
	}

	if previous, ok := p.snapshots[key]; ok {
		prev := previous.Current
		diff := value - prev
		next.Previous = prev
		next.Diff = &diff
		if prev != 0 {
			pct := diff / prev * 100
			next.DiffPercent = &pct
		}
	}

	p.snapshots[key] = next
}
