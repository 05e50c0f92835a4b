package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/logger/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	platform core.Platform
	trades   chan core.Trade
}

func newFakeConnector(platform core.Platform) *fakeConnector {
	return &fakeConnector{platform: platform, trades: make(chan core.Trade, 16)}
}

func (c *fakeConnector) Platform() core.Platform                 { return c.platform }
func (c *fakeConnector) Symbols(context.Context) ([]string, error) { return []string{"BTCUSDT"}, nil }
func (c *fakeConnector) Subscribe(context.Context, []string) error { return nil }
func (c *fakeConnector) Trades() <-chan core.Trade                { return c.trades }

func testLogger(t *testing.T) core.Logger {
	t.Helper()
	log, err := zerolog.New("disabled", "2006-01-02 15:04:05", false, false)
	require.NoError(t, err)
	return log
}

func TestTradeFeed_Subscribe(t *testing.T) {
	connector := newFakeConnector(core.PlatformBinance)
	feed := NewTradeFeed(testLogger(t), connector)

	received := make(chan core.Trade, 1)
	feed.Subscribe(func(trade core.Trade) {
		received <- trade
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed.Start(ctx)

	sent := core.Trade{Platform: core.PlatformBinance, Pair: "BTCUSDT", Price: 100, Volume: 1, TimestampMs: 1_000}
	connector.trades <- sent

	require.Equal(t, sent, <-received)
}

func TestTradeFeed_PreservesPerPlatformOrder(t *testing.T) {
	connector := newFakeConnector(core.PlatformBybit)
	feed := NewTradeFeed(testLogger(t), connector)

	received := make(chan core.Trade, 16)
	feed.Subscribe(func(trade core.Trade) {
		received <- trade
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed.Start(ctx)

	for i := int64(0); i < 10; i++ {
		connector.trades <- core.Trade{Platform: core.PlatformBybit, Pair: "BTCUSDT", TimestampMs: i}
	}

	for i := int64(0); i < 10; i++ {
		require.Equal(t, i, (<-received).TimestampMs)
	}
}

func TestTradeFeed_PublishSymbols(t *testing.T) {
	feed := NewTradeFeed(testLogger(t), newFakeConnector(core.PlatformBinance))

	var gotPlatform core.Platform
	var gotSymbols []string
	feed.OnSymbolsFetched(func(platform core.Platform, symbols []string) {
		gotPlatform = platform
		gotSymbols = symbols
	})

	feed.PublishSymbols(core.PlatformBinance, []string{"BTCUSDT", "ETHUSDT"})

	require.Equal(t, core.PlatformBinance, gotPlatform)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, gotSymbols)
}

func TestTradeFeed_StopsOnContextCancel(t *testing.T) {
	connector := newFakeConnector(core.PlatformBinance)
	feed := NewTradeFeed(testLogger(t), connector)

	received := make(chan core.Trade, 1)
	feed.Subscribe(func(trade core.Trade) {
		received <- trade
	})

	ctx, cancel := context.WithCancel(context.Background())
	feed.Start(ctx)
	cancel()

	// give the drain goroutine a moment to observe cancellation
	time.Sleep(20 * time.Millisecond)
	connector.trades <- core.Trade{Pair: "BTCUSDT"}

	select {
	case <-received:
		t.Fatal("trade delivered after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSplitShards(t *testing.T) {
	symbols := make([]string, 120)
	for i := range symbols {
		symbols[i] = "S"
	}

	shards := SplitShards(symbols)
	require.Len(t, shards, 3)
	require.Len(t, shards[0], 50)
	require.Len(t, shards[1], 50)
	require.Len(t, shards[2], 20)
}

func TestReconnectDelayIsLinear(t *testing.T) {
	require.Equal(t, 1*time.Second, ReconnectDelay(1))
	require.Equal(t, 3*time.Second, ReconnectDelay(3))
	require.Equal(t, 5*time.Second, ReconnectDelay(5))
}

func TestWaitReconnect_Cancellable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	require.False(t, WaitReconnect(ctx, 5))
	require.Less(t, time.Since(start), time.Second)
}
