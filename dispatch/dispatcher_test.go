package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/logger/zerolog"
	"github.com/stretchr/testify/require"
)

// ---------------------
// Fakes
// ---------------------

type fakeRegistry struct {
	mu      sync.Mutex
	configs map[int64]core.SubscriberConfig
	states  map[int64]core.SubscriberState
}

func newFakeRegistry(configs ...core.SubscriberConfig) *fakeRegistry {
	r := &fakeRegistry{
		configs: make(map[int64]core.SubscriberConfig),
		states:  make(map[int64]core.SubscriberState),
	}
	for _, config := range configs {
		r.configs[config.ID] = config
	}
	return r
}

func (r *fakeRegistry) Config(_ context.Context, id int64) (core.SubscriberConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	config, ok := r.configs[id]
	if !ok {
		return core.SubscriberConfig{}, core.ErrSubscriberNotFound
	}
	return config, nil
}

func (r *fakeRegistry) AllConfigs(context.Context) ([]core.SubscriberConfig, error) {
	return nil, nil
}

func (r *fakeRegistry) CreateConfig(_ context.Context, config core.SubscriberConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[config.ID] = config
	return nil
}

func (r *fakeRegistry) DeleteConfig(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, id)
	return nil
}

func (r *fakeRegistry) SetState(_ context.Context, id int64, state core.SubscriberState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = state
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []int64
	fails map[int64]error
}

func (n *fakeNotifier) Send(_ context.Context, destination int64, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.fails[destination]; ok {
		return err
	}
	n.sent = append(n.sent, destination)
	return nil
}

type fakeRemover struct {
	mu      sync.Mutex
	removed []int64
}

func (r *fakeRemover) RemoveSubscriber(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

type fakeOpenInterest struct {
	snapshot core.OpenInterestSnapshot
}

func (f *fakeOpenInterest) Snapshot(core.Platform, string) (core.OpenInterestSnapshot, bool) {
	return f.snapshot, true
}

// ---------------------
// Helpers
// ---------------------

func testLogger(t *testing.T) core.Logger {
	t.Helper()
	log, err := zerolog.New("disabled", "2006-01-02 15:04:05", false, false)
	require.NoError(t, err)
	return log
}

func activeConfig(id int64) core.SubscriberConfig {
	return core.SubscriberConfig{
		ID:               id,
		ThresholdPercent: 5,
		WindowSize:       150 * time.Second,
		State:            core.StateActive,
	}
}

func pumpEvent() core.PumpEvent {
	return core.PumpEvent{
		Pair:        "BTCUSDT",
		Platform:    core.PlatformBinance,
		MinPrice:    100,
		LastPrice:   106,
		DiffPercent: 6,
		TimestampMs: time.Now().UnixMilli(),
	}
}

// ---------------------
// Tests
// ---------------------

func TestDispatcher_SendsToEligibleSubscribers(t *testing.T) {
	registry := newFakeRegistry(activeConfig(1), activeConfig(2))
	notifier := &fakeNotifier{}
	remover := &fakeRemover{}

	d := NewDispatcher(registry, notifier, NewLimiter(1000, 0, 1), remover, testLogger(t))
	d.SendAlerts(context.Background(), pumpEvent(), []int64{1, 2})

	require.ElementsMatch(t, []int64{1, 2}, notifier.sent)
	require.Empty(t, remover.removed)
}

func TestDispatcher_SkipsStoppedSubscriber(t *testing.T) {
	stopped := activeConfig(2)
	stopped.State = core.StateStopped

	registry := newFakeRegistry(activeConfig(1), stopped)
	notifier := &fakeNotifier{}

	d := NewDispatcher(registry, notifier, NewLimiter(1000, 0, 1), &fakeRemover{}, testLogger(t))
	d.SendAlerts(context.Background(), pumpEvent(), []int64{1, 2})

	require.Equal(t, []int64{1}, notifier.sent)
}

func TestDispatcher_SkipsExpiredSubscriber(t *testing.T) {
	expired := activeConfig(1)
	expired.ValidUntil = time.Now().Add(-time.Hour)

	registry := newFakeRegistry(expired)
	notifier := &fakeNotifier{}

	d := NewDispatcher(registry, notifier, NewLimiter(1000, 0, 1), &fakeRemover{}, testLogger(t))
	d.SendAlerts(context.Background(), pumpEvent(), []int64{1})

	require.Empty(t, notifier.sent)
}

func TestDispatcher_SkipsMutedExchange(t *testing.T) {
	muted := activeConfig(1)
	muted.StoppedExchanges = []core.Platform{core.PlatformBinance}

	registry := newFakeRegistry(muted)
	notifier := &fakeNotifier{}

	d := NewDispatcher(registry, notifier, NewLimiter(1000, 0, 1), &fakeRemover{}, testLogger(t))
	d.SendAlerts(context.Background(), pumpEvent(), []int64{1})

	require.Empty(t, notifier.sent)
}

func TestDispatcher_SkipsUnselectedPair(t *testing.T) {
	selective := activeConfig(1)
	selective.SelectedPairs = []string{"ETHUSDT"}

	registry := newFakeRegistry(selective)
	notifier := &fakeNotifier{}

	d := NewDispatcher(registry, notifier, NewLimiter(1000, 0, 1), &fakeRemover{}, testLogger(t))
	d.SendAlerts(context.Background(), pumpEvent(), []int64{1})

	require.Empty(t, notifier.sent)
}

func TestDispatcher_RetiresBlockedRecipient(t *testing.T) {
	registry := newFakeRegistry(activeConfig(1), activeConfig(2))
	notifier := &fakeNotifier{fails: map[int64]error{1: core.ErrRecipientBlocked}}
	remover := &fakeRemover{}

	d := NewDispatcher(registry, notifier, NewLimiter(1000, 0, 1), remover, testLogger(t))
	d.SendAlerts(context.Background(), pumpEvent(), []int64{1, 2})

	require.Equal(t, []int64{1}, remover.removed)
	require.Equal(t, core.StateStopped, registry.states[1])

	// the failure of one recipient never blocks the others
	require.Equal(t, []int64{2}, notifier.sent)
}

func TestDispatcher_TransientErrorIsNotRetired(t *testing.T) {
	registry := newFakeRegistry(activeConfig(1))
	notifier := &fakeNotifier{fails: map[int64]error{1: errors.New("timeout")}}
	remover := &fakeRemover{}

	d := NewDispatcher(registry, notifier, NewLimiter(1000, 0, 1), remover, testLogger(t))
	d.SendAlerts(context.Background(), pumpEvent(), []int64{1})

	require.Empty(t, remover.removed)
	require.Empty(t, registry.states)
}

func TestDispatcher_AlertTextCarriesOpenInterest(t *testing.T) {
	diff := 2.541
	source := &fakeOpenInterest{snapshot: core.OpenInterestSnapshot{
		Symbol:      "BTCUSDT",
		Current:     123456,
		DiffPercent: &diff,
	}}

	d := NewDispatcher(newFakeRegistry(), &fakeNotifier{}, NewLimiter(1000, 0, 1), &fakeRemover{},
		testLogger(t), WithOpenInterest(source))

	text := d.formatAlert(pumpEvent())
	require.Contains(t, text, "BTCUSDT")
	require.Contains(t, text, "+6.00%")
	require.Contains(t, text, "Open interest")
	require.Contains(t, text, "+2.541%")
}
