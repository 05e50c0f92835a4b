package coinbase

import (
	"testing"

	"github.com/raykavin/pumpwatch/core"
	"github.com/stretchr/testify/require"
)

const matchFrame = `{
	"type": "match",
	"product_id": "BTC-USD",
	"price": "43250.25",
	"size": "0.015",
	"time": "2023-11-14T22:13:20.123456Z"
}`

func TestAdaptMessage_Match(t *testing.T) {
	trade, ok := AdaptMessage([]byte(matchFrame))
	require.True(t, ok)
	require.Equal(t, core.PlatformCoinbase, trade.Platform)
	require.Equal(t, "BTC-USD", trade.Pair)
	require.Equal(t, 43250.25, trade.Price)
	require.Equal(t, 0.015, trade.Volume)
	require.Equal(t, int64(1700000000123), trade.TimestampMs)
}

func TestAdaptMessage_LastMatch(t *testing.T) {
	frame := `{"type": "last_match", "product_id": "ETH-USD", "price": "2300", "size": "1", "time": "2023-11-14T22:13:20Z"}`

	trade, ok := AdaptMessage([]byte(frame))
	require.True(t, ok)
	require.Equal(t, "ETH-USD", trade.Pair)
}

func TestAdaptMessage_Idempotent(t *testing.T) {
	first, ok := AdaptMessage([]byte(matchFrame))
	require.True(t, ok)

	second, ok := AdaptMessage([]byte(matchFrame))
	require.True(t, ok)
	require.Equal(t, first, second)
}

func TestAdaptMessage_DropsControlFrames(t *testing.T) {
	_, ok := AdaptMessage([]byte(`{"type": "heartbeat", "product_id": "BTC-USD"}`))
	require.False(t, ok)

	_, ok = AdaptMessage([]byte(`{"type": "subscriptions"}`))
	require.False(t, ok)

	_, ok = AdaptMessage([]byte(`{"type": "error", "message": "rate limited"}`))
	require.False(t, ok)
}

func TestAdaptMessage_Malformed(t *testing.T) {
	_, ok := AdaptMessage([]byte(`{"type": "match", "price": "1", "size": "1", "time": "2023-11-14T22:13:20Z"}`))
	require.False(t, ok)

	_, ok = AdaptMessage([]byte(`{"type": "match", "product_id": "BTC-USD", "price": "x", "size": "1", "time": "2023-11-14T22:13:20Z"}`))
	require.False(t, ok)

	_, ok = AdaptMessage([]byte(`{"type": "match", "product_id": "BTC-USD", "price": "1", "size": "1", "time": "nope"}`))
	require.False(t, ok)
}
