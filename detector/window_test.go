package detector

import (
	"testing"
	"time"

	"github.com/raykavin/pumpwatch/core"
	"github.com/stretchr/testify/require"
)

func trade(price, volume float64, ts int64) core.Trade {
	return core.Trade{
		Platform:    core.PlatformBinance,
		Pair:        "BTCUSDT",
		Price:       price,
		Volume:      volume,
		TimestampMs: ts,
	}
}

func TestWindow_Empty(t *testing.T) {
	w := NewWindow(150 * time.Second)

	require.Zero(t, w.Len())
	require.Zero(t, w.MinPrice())
	require.Zero(t, w.Stats().PriceChangePercent)
}

func TestWindow_MinTracksAllTrades(t *testing.T) {
	w := NewWindow(150 * time.Second)

	w.Add(trade(100, 1, 1_000))
	w.Add(trade(90, 1, 2_000))
	w.Add(trade(95, 1, 3_000))

	require.Equal(t, 3, w.Len())
	require.Equal(t, 90.0, w.MinPrice())
	require.Equal(t, 3.0, w.TotalVolume())
}

func TestWindow_EvictionRestoresMin(t *testing.T) {
	w := NewWindow(150 * time.Second)

	w.Add(trade(100, 1, 0))
	w.Add(trade(90, 1, 1_000))
	w.Add(trade(95, 1, 60_000))

	// the two oldest trades leave the window, the minimum must come from
	// what remains
	w.Add(trade(96, 1, 160_000))

	require.Equal(t, 2, w.Len())
	require.Equal(t, 95.0, w.MinPrice())
	require.Equal(t, 2.0, w.TotalVolume())
}

func TestWindow_EvictionBoundedByLastTrade(t *testing.T) {
	w := NewWindow(150 * time.Second)

	w.Add(trade(100, 1, 0))
	w.Add(trade(101, 1, 150_000))

	// exactly windowSize apart is still inside
	require.Equal(t, 2, w.Len())

	w.Add(trade(102, 1, 150_001))
	require.Equal(t, 2, w.Len())
	require.Equal(t, 101.0, w.MinPrice())
}

func TestWindow_Stats(t *testing.T) {
	w := NewWindow(150 * time.Second)

	w.Add(trade(100, 3, 1_000))
	w.Add(trade(106, 1, 2_000))

	stats := w.Stats()
	require.Equal(t, 100.0, stats.MinPrice)
	require.Equal(t, 106.0, stats.LastPrice)
	require.InDelta(t, 6.0, stats.PriceChangePercent, 1e-9)
	require.InDelta(t, 25.0, stats.VolumeChangePercent, 1e-9)
}

func TestWindow_VolumeSumStaysConsistent(t *testing.T) {
	w := NewWindow(10 * time.Second)

	for i := int64(0); i < 100; i++ {
		w.Add(trade(float64(50+i%10), 2, i*1_000))
	}

	require.InDelta(t, float64(w.Len())*2, w.TotalVolume(), 1e-9)
}
