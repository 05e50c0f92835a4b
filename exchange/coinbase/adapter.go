package coinbase

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/raykavin/pumpwatch/core"
)

// AdaptMessage converts a raw feed frame into a canonical trade. Only
// match frames qualify; everything else (heartbeats, acks, errors) is
// reported as not-ok and dropped by the caller.
func AdaptMessage(payload []byte) (core.Trade, bool) {
	var message feedMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return core.Trade{}, false
	}

	if message.Type != "match" && message.Type != "last_match" {
		return core.Trade{}, false
	}
	if message.ProductID == "" {
		return core.Trade{}, false
	}

	price, err := strconv.ParseFloat(message.Price, 64)
	if err != nil {
		return core.Trade{}, false
	}

	size, err := strconv.ParseFloat(message.Size, 64)
	if err != nil {
		return core.Trade{}, false
	}

	ts, err := time.Parse(time.RFC3339Nano, message.Time)
	if err != nil {
		return core.Trade{}, false
	}

	return core.Trade{
		Platform:    core.PlatformCoinbase,
		Pair:        message.ProductID,
		Price:       price,
		Volume:      size,
		TimestampMs: ts.UnixMilli(),
	}, true
}
