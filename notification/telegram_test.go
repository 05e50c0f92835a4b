package notification

import (
	"testing"
	"time"

	"github.com/raykavin/pumpwatch/core"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	platform, ok := parsePlatform("bybit")
	require.True(t, ok)
	require.Equal(t, core.PlatformBybit, platform)

	platform, ok = parsePlatform("Binance")
	require.True(t, ok)
	require.Equal(t, core.PlatformBinance, platform)

	_, ok = parsePlatform("kraken")
	require.False(t, ok)
}

func TestFormatStatusMessage(t *testing.T) {
	config := core.SubscriberConfig{
		ID:               1,
		ThresholdPercent: 5,
		WindowSize:       150 * time.Second,
		SelectedPairs:    []string{"BTCUSDT", "ETHUSDT"},
		StoppedExchanges: []core.Platform{core.PlatformCoinbase},
		State:            core.StateActive,
	}

	message := formatStatusMessage(config)
	require.Contains(t, message, "5.00%")
	require.Contains(t, message, "2m30s")
	require.Contains(t, message, "BTCUSDT")
	require.Contains(t, message, "Coinbase")
}

func TestFormatStatusMessage_Wildcard(t *testing.T) {
	config := core.SubscriberConfig{
		ThresholdPercent: 1,
		WindowSize:       150 * time.Second,
		State:            core.StateActive,
	}

	message := formatStatusMessage(config)
	require.Contains(t, message, "Pairs: `all`")
	require.NotContains(t, message, "Muted")
}

func TestCommandRegexps(t *testing.T) {
	match := thresholdRegexp.FindStringSubmatch("/threshold 5.5")
	require.NotEmpty(t, match)
	require.Equal(t, "5.5", extractCommandParams(thresholdRegexp, match)["value"])

	match = windowRegexp.FindStringSubmatch("/window 5m")
	require.NotEmpty(t, match)
	require.Equal(t, "5m", extractCommandParams(windowRegexp, match)["value"])

	match = muteRegexp.FindStringSubmatch("/unmute bybit")
	require.NotEmpty(t, match)
	params := extractCommandParams(muteRegexp, match)
	require.Equal(t, "unmute", params["action"])
	require.Equal(t, "bybit", params["exchange"])

	require.Empty(t, thresholdRegexp.FindStringSubmatch("/threshold abc"))
}
