package binance

import (
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/raykavin/pumpwatch/core"
)

// AdaptAggTrade converts a Binance aggregated-trade frame into a canonical
// trade. Malformed frames are reported as not-ok and dropped by the caller.
func AdaptAggTrade(event *futures.WsAggTradeEvent) (core.Trade, bool) {
	if event == nil || event.Symbol == "" {
		return core.Trade{}, false
	}

	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil {
		return core.Trade{}, false
	}

	volume, err := strconv.ParseFloat(event.Quantity, 64)
	if err != nil {
		return core.Trade{}, false
	}

	return core.Trade{
		Platform:    core.PlatformBinance,
		Pair:        event.Symbol,
		Price:       price,
		Volume:      volume,
		TimestampMs: event.TradeTime,
	}, true
}
