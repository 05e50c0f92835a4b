package detector

import (
	"time"

	"github.com/raykavin/pumpwatch/core"
)

// tradePoint is a single print kept inside a window. The sequence number
// ties deque entries to their window entries during eviction.
type tradePoint struct {
	price  float64
	volume float64
	ts     int64
	seq    uint64
}

// Window is the sliding time window of one (platform, pair). It keeps the
// window minimum in a monotonic deque so both insertion and eviction are
// O(1) amortized. Windows are owned by their detector group and are never
// shared across goroutines.
type Window struct {
	size        time.Duration
	trades      []tradePoint
	minq        []tradePoint // prices non-decreasing from head
	totalVolume float64
	seq         uint64
}

// NewWindow creates an empty window covering the given duration.
func NewWindow(size time.Duration) *Window {
	return &Window{size: size}
}

// Add appends a trade to the window tail and evicts everything older than
// the window size, measured against the inserted trade's timestamp.
func (w *Window) Add(t core.Trade) {
	point := tradePoint{price: t.Price, volume: t.Volume, ts: t.TimestampMs, seq: w.seq}
	w.seq++

	w.trades = append(w.trades, point)
	w.totalVolume += point.volume

	// Drop deque entries that can never be the minimum again.
	for len(w.minq) > 0 && w.minq[len(w.minq)-1].price > point.price {
		w.minq = w.minq[:len(w.minq)-1]
	}
	w.minq = append(w.minq, point)

	windowMs := w.size.Milliseconds()
	for len(w.trades) > 0 && point.ts-w.trades[0].ts > windowMs {
		head := w.trades[0]
		w.trades = w.trades[1:]
		w.totalVolume -= head.volume

		if len(w.minq) > 0 && w.minq[0].seq == head.seq {
			w.minq = w.minq[1:]
		}
	}
}

// Len returns the number of trades currently inside the window.
func (w *Window) Len() int {
	return len(w.trades)
}

// MinPrice returns the minimum price among trades currently in the window.
func (w *Window) MinPrice() float64 {
	if len(w.minq) == 0 {
		return 0
	}
	return w.minq[0].price
}

// TotalVolume returns the volume sum of trades currently in the window.
func (w *Window) TotalVolume() float64 {
	return w.totalVolume
}

// Stats reports the current window reading. An empty window, or a window
// whose minimum price is zero, yields a neutral zero change instead of a
// division by zero.
func (w *Window) Stats() WindowStats {
	if len(w.trades) == 0 {
		return WindowStats{}
	}

	last := w.trades[len(w.trades)-1]
	stats := WindowStats{
		MinPrice:  w.minq[0].price,
		LastPrice: last.price,
	}

	if stats.MinPrice != 0 {
		stats.PriceChangePercent = (last.price - stats.MinPrice) / stats.MinPrice * 100
	}
	if w.totalVolume != 0 {
		stats.VolumeChangePercent = last.volume / w.totalVolume * 100
	}

	return stats
}

// WindowStats is the aggregated reading of a window at one point in time.
type WindowStats struct {
	MinPrice            float64
	LastPrice           float64
	PriceChangePercent  float64
	VolumeChangePercent float64
}
