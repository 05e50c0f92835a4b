package detector

import (
	"time"

	"github.com/raykavin/pumpwatch/core"
)

// DefaultSignificanceMultiplier is the factor a new pump must exceed the
// previously alerted pump by to re-trigger before the window expires.
const DefaultSignificanceMultiplier = 1.25

// PairKey identifies the window and alert memory of one pair on one exchange.
type PairKey struct {
	Platform core.Platform
	Pair     string
}

// pumpMemory records the most recently emitted pump for a pair. It exists
// only for hysteresis and is overwritten on every emission.
type pumpMemory struct {
	priceChange float64
	ts          int64
}

// Detector decides whether a window reading amounts to an alertable pump.
// The hysteresis rule suppresses alert storms while a pair oscillates just
// above threshold, yet re-alerts once the move grows meaningfully or the
// previous alert has aged past the window size.
type Detector struct {
	threshold  float64
	windowSize time.Duration
	multiplier float64
	memory     map[PairKey]pumpMemory
}

// NewDetector creates a detector for the given threshold percent and window.
func NewDetector(thresholdPercent float64, windowSize time.Duration) *Detector {
	return &Detector{
		threshold:  thresholdPercent,
		windowSize: windowSize,
		multiplier: DefaultSignificanceMultiplier,
		memory:     make(map[PairKey]pumpMemory),
	}
}

// Evaluate inspects the window of the given pair and returns a PumpEvent if
// the movement is both above threshold and significant (or the last alert is
// older than one window).
func (d *Detector) Evaluate(key PairKey, w *Window, nowMs int64) (core.PumpEvent, bool) {
	stats := w.Stats()

	isPump := stats.PriceChangePercent >= d.threshold
	if !isPump {
		return core.PumpEvent{}, false
	}

	last, seen := d.memory[key]
	isSignificant := !seen || stats.PriceChangePercent >= last.priceChange*d.multiplier
	expired := seen && nowMs-last.ts > d.windowSize.Milliseconds()

	if !isSignificant && !expired {
		return core.PumpEvent{}, false
	}

	d.memory[key] = pumpMemory{priceChange: stats.PriceChangePercent, ts: nowMs}

	return core.PumpEvent{
		Pair:                key.Pair,
		Platform:            key.Platform,
		MinPrice:            stats.MinPrice,
		LastPrice:           stats.LastPrice,
		DiffPercent:         stats.PriceChangePercent,
		VolumeChangePercent: stats.VolumeChangePercent,
		TimestampMs:         nowMs,
	}, true
}

// Forget drops the alert memory of a pair.
func (d *Detector) Forget(key PairKey) {
	delete(d.memory, key)
}
