package openinterest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/logger/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	platform core.Platform
	value    atomic.Int64
	calls    atomic.Int64
}

func (f *fakeFetcher) Platform() core.Platform {
	return f.platform
}

func (f *fakeFetcher) OpenInterest(context.Context, string) (float64, error) {
	f.calls.Add(1)
	return float64(f.value.Load()), nil
}

func testLogger(t *testing.T) core.Logger {
	t.Helper()
	log, err := zerolog.New("disabled", "2006-01-02 15:04:05", false, false)
	require.NoError(t, err)
	return log
}

func TestPoller_FirstObservationHasNoDiff(t *testing.T) {
	p := NewPoller(time.Minute, testLogger(t))

	p.store(core.PlatformBinance, "BTCUSDT", 1000)

	snapshot, ok := p.Snapshot(core.PlatformBinance, "BTCUSDT")
	require.True(t, ok)
	require.Equal(t, 1000.0, snapshot.Current)
	require.Nil(t, snapshot.Diff)
	require.Nil(t, snapshot.DiffPercent)
}

func TestPoller_SecondObservationComputesDiff(t *testing.T) {
	p := NewPoller(time.Minute, testLogger(t))

	p.store(core.PlatformBinance, "BTCUSDT", 1000)
	p.store(core.PlatformBinance, "BTCUSDT", 1050)

	snapshot, ok := p.Snapshot(core.PlatformBinance, "BTCUSDT")
	require.True(t, ok)
	require.Equal(t, 1050.0, snapshot.Current)
	require.Equal(t, 1000.0, snapshot.Previous)
	require.NotNil(t, snapshot.Diff)
	require.Equal(t, 50.0, *snapshot.Diff)
	require.NotNil(t, snapshot.DiffPercent)
	require.InDelta(t, 5.0, *snapshot.DiffPercent, 1e-9)
}

func TestPoller_SnapshotsAreKeyedByPlatform(t *testing.T) {
	p := NewPoller(time.Minute, testLogger(t))

	p.store(core.PlatformBinance, "BTCUSDT", 1000)

	_, ok := p.Snapshot(core.PlatformBybit, "BTCUSDT")
	require.False(t, ok)
}

func TestPoller_PollsImmediately(t *testing.T) {
	fetcher := &fakeFetcher{platform: core.PlatformBinance}
	fetcher.value.Store(500)

	p := NewPoller(time.Hour, testLogger(t), fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.StartPolling(ctx, core.PlatformBinance, []string{"BTCUSDT"})

	require.Eventually(t, func() bool {
		snapshot, ok := p.Snapshot(core.PlatformBinance, "BTCUSDT")
		return ok && snapshot.Current == 500
	}, time.Second, 10*time.Millisecond)

	p.Stop()
}

func TestPoller_StartPollingReplacesLoop(t *testing.T) {
	fetcher := &fakeFetcher{platform: core.PlatformBinance}

	p := NewPoller(time.Hour, testLogger(t), fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.StartPolling(ctx, core.PlatformBinance, []string{"BTCUSDT"})
	p.StartPolling(ctx, core.PlatformBinance, []string{"ETHUSDT"})

	require.Eventually(t, func() bool {
		_, ok := p.Snapshot(core.PlatformBinance, "ETHUSDT")
		return ok
	}, time.Second, 10*time.Millisecond)

	p.Stop()
}

func TestPoller_Supports(t *testing.T) {
	p := NewPoller(time.Minute, testLogger(t), &fakeFetcher{platform: core.PlatformBinance})

	require.True(t, p.Supports(core.PlatformBinance))
	require.False(t, p.Supports(core.PlatformCoinbase))
}
