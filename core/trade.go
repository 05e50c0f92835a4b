package core

import "time"

// Platform identifies the exchange a trade or snapshot originates from.
type Platform string

const (
	PlatformBinance  Platform = "Binance"
	PlatformBybit    Platform = "Bybit"
	PlatformCoinbase Platform = "Coinbase"
)

// Trade is the canonical trade print produced by a message adapter.
// It is immutable after creation and discarded once applied to a window.
type Trade struct {
	Platform    Platform
	Pair        string
	Price       float64
	Volume      float64
	TimestampMs int64
}

// Time returns the trade timestamp as a time.Time.
func (t Trade) Time() time.Time {
	return time.Unix(0, t.TimestampMs*int64(time.Millisecond))
}

// PumpEvent describes a detected pump on a single pair. It is created by
// the detector and consumed once by the alert dispatcher.
type PumpEvent struct {
	Pair                string
	Platform            Platform
	MinPrice            float64
	LastPrice           float64
	DiffPercent         float64
	VolumeChangePercent float64
	TimestampMs         int64
}

// OpenInterestSnapshot holds the latest observed open interest for a
// (platform, symbol) and its change against the previous observation.
// Diff and DiffPercent are nil until a second observation exists.
type OpenInterestSnapshot struct {
	Symbol      string
	Current     float64
	Previous    float64
	Diff        *float64
	DiffPercent *float64
	UpdatedAt   time.Time
}
