package bybit

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/raykavin/pumpwatch/core"
)

// AdaptMessage converts a raw publicTrade frame into a canonical trade.
// Bybit batches several prints per frame; the earliest-timestamped print
// wins (stable sort by trade time, take first) and the rest are discarded.
// Non-trade frames and malformed payloads are reported as not-ok.
func AdaptMessage(payload []byte) (core.Trade, bool) {
	var message tradeMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return core.Trade{}, false
	}

	if message.Topic == "" || len(message.Data) == 0 {
		return core.Trade{}, false
	}

	prints := make([]tradePrint, len(message.Data))
	copy(prints, message.Data)
	sort.SliceStable(prints, func(i, j int) bool {
		return prints[i].Timestamp < prints[j].Timestamp
	})

	earliest := prints[0]
	if earliest.Symbol == "" {
		return core.Trade{}, false
	}

	price, err := strconv.ParseFloat(earliest.Price, 64)
	if err != nil {
		return core.Trade{}, false
	}

	volume, err := strconv.ParseFloat(earliest.Volume, 64)
	if err != nil {
		return core.Trade{}, false
	}

	return core.Trade{
		Platform:    core.PlatformBybit,
		Pair:        earliest.Symbol,
		Price:       price,
		Volume:      volume,
		TimestampMs: earliest.Timestamp,
	}, true
}
