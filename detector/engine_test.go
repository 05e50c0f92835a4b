package detector

import (
	"testing"
	"time"

	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/logger/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) core.Logger {
	t.Helper()
	log, err := zerolog.New("disabled", "2006-01-02 15:04:05", false, false)
	require.NoError(t, err)
	return log
}

func config(id int64, threshold float64, window time.Duration, pairs ...string) core.SubscriberConfig {
	return core.SubscriberConfig{
		ID:               id,
		ThresholdPercent: threshold,
		WindowSize:       window,
		SelectedPairs:    pairs,
		State:            core.StateActive,
	}
}

func TestEngine_SharedGroup(t *testing.T) {
	e := NewEngine(testLogger(t))

	e.AddSubscriber(config(1, 5, 150*time.Second))
	e.AddSubscriber(config(2, 5, 150*time.Second))
	e.AddSubscriber(config(3, 10, 150*time.Second))

	require.Equal(t, 2, e.Groups())

	group, ok := e.Group(GroupKey{ThresholdPercent: 5, WindowSize: 150 * time.Second})
	require.True(t, ok)
	require.ElementsMatch(t, []int64{1, 2}, group.Subscribers())
}

func TestEngine_AlertCarriesGroupSubscribers(t *testing.T) {
	e := NewEngine(testLogger(t))

	e.AddSubscriber(config(1, 5, 150*time.Second))
	e.AddSubscriber(config(2, 5, 150*time.Second))

	e.HandleTrade(trade(100, 1, 1_000))
	alerts := e.HandleTrade(trade(106, 1, 2_000))

	require.Len(t, alerts, 1)
	require.ElementsMatch(t, []int64{1, 2}, alerts[0].Subscribers)
	require.InDelta(t, 6.0, alerts[0].Event.DiffPercent, 1e-9)
}

func TestEngine_GroupsEvaluateIndependently(t *testing.T) {
	e := NewEngine(testLogger(t))

	e.AddSubscriber(config(1, 5, 150*time.Second))
	e.AddSubscriber(config(2, 10, 150*time.Second))

	e.HandleTrade(trade(100, 1, 1_000))
	alerts := e.HandleTrade(trade(106, 1, 2_000))

	// only the 5% group fires on a 6% move
	require.Len(t, alerts, 1)
	require.Equal(t, []int64{1}, alerts[0].Subscribers)
}

func TestEngine_PairSelectionFiltersTrades(t *testing.T) {
	e := NewEngine(testLogger(t))

	e.AddSubscriber(config(1, 5, 150*time.Second, "ETHUSDT"))

	e.HandleTrade(trade(100, 1, 1_000))
	alerts := e.HandleTrade(trade(106, 1, 2_000))

	// trades are BTCUSDT, the only subscriber wants ETHUSDT
	require.Empty(t, alerts)
}

func TestEngine_RemoveSubscriberTearsDownEmptyGroup(t *testing.T) {
	e := NewEngine(testLogger(t))

	e.AddSubscriber(config(1, 5, 150*time.Second))
	e.AddSubscriber(config(2, 5, 150*time.Second))

	e.RemoveSubscriber(1)
	require.Equal(t, 1, e.Groups())

	e.RemoveSubscriber(2)
	require.Zero(t, e.Groups())
}

func TestEngine_TeardownDropsWindowState(t *testing.T) {
	e := NewEngine(testLogger(t))

	e.AddSubscriber(config(1, 5, 150*time.Second))
	e.HandleTrade(trade(100, 1, 1_000))

	// the group and its window state disappear with the last subscriber
	e.RemoveSubscriber(1)
	e.AddSubscriber(config(1, 5, 150*time.Second))

	// without the old minimum at 100, a single print is not a pump
	alerts := e.HandleTrade(trade(106, 1, 2_000))
	require.Empty(t, alerts)
}

func TestEngine_UpdateSubscriberMovesGroups(t *testing.T) {
	e := NewEngine(testLogger(t))

	e.AddSubscriber(config(1, 5, 150*time.Second))
	e.UpdateSubscriber(config(1, 10, 150*time.Second))

	require.Equal(t, 1, e.Groups())
	_, ok := e.Group(GroupKey{ThresholdPercent: 10, WindowSize: 150 * time.Second})
	require.True(t, ok)
}

func TestEngine_InterestedPairs(t *testing.T) {
	e := NewEngine(testLogger(t))

	e.AddSubscriber(config(1, 5, 150*time.Second, "BTCUSDT", "ETHUSDT"))
	e.AddSubscriber(config(2, 10, 150*time.Second, "ETHUSDT", "SOLUSDT"))

	pairs, wildcard := e.InterestedPairs()
	require.False(t, wildcard)
	require.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, pairs)

	e.AddSubscriber(config(3, 5, 150*time.Second))
	_, wildcard = e.InterestedPairs()
	require.True(t, wildcard)
}
