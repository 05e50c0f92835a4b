package detector

import (
	"sync"

	"github.com/StudioSol/set"
	"github.com/raykavin/pumpwatch/core"
)

// Engine owns the detector groups and routes every inbound trade to the
// groups whose subscribers are interested in its pair. Group membership is
// mutated by configuration changes concurrently with trade processing, so
// the group map is behind a read-mostly lock.
type Engine struct {
	mu     sync.RWMutex
	groups map[GroupKey]*Group
	log    core.Logger
}

// NewEngine creates an empty group registry.
func NewEngine(log core.Logger) *Engine {
	return &Engine{
		groups: make(map[GroupKey]*Group),
		log:    log,
	}
}

// AddSubscriber attaches a subscriber to the group matching its parameters,
// creating the group on first use.
func (e *Engine) AddSubscriber(cfg core.SubscriberConfig) {
	key := GroupKey{ThresholdPercent: cfg.ThresholdPercent, WindowSize: cfg.WindowSize}

	e.mu.Lock()
	group, ok := e.groups[key]
	if !ok {
		group = newGroup(key)
		e.groups[key] = group
		e.log.WithFields(map[string]any{
			"threshold": key.ThresholdPercent,
			"window":    key.WindowSize,
		}).Info("detector group created")
	}
	e.mu.Unlock()

	group.add(cfg)
}

// RemoveSubscriber detaches a subscriber from every group; groups left
// empty are torn down together with their window state.
func (e *Engine) RemoveSubscriber(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, group := range e.groups {
		if group.remove(id) && group.empty() {
			delete(e.groups, key)
			e.log.WithFields(map[string]any{
				"threshold": key.ThresholdPercent,
				"window":    key.WindowSize,
			}).Info("detector group torn down")
		}
	}
}

// UpdateSubscriber reseats a subscriber after a parameter change. Changing
// parameters is always remove-then-add, never in-place group mutation.
func (e *Engine) UpdateSubscriber(cfg core.SubscriberConfig) {
	e.RemoveSubscriber(cfg.ID)
	e.AddSubscriber(cfg)
}

// HandleTrade routes one canonical trade through every interested group and
// collects the alerts they raise.
func (e *Engine) HandleTrade(t core.Trade) []Alert {
	e.mu.RLock()
	groups := make([]*Group, 0, len(e.groups))
	for _, group := range e.groups {
		groups = append(groups, group)
	}
	e.mu.RUnlock()

	var alerts []Alert
	for _, group := range groups {
		if alert, ok := group.handleTrade(t); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// Group returns the group serving the given parameters, if any.
func (e *Engine) Group(key GroupKey) (*Group, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	group, ok := e.groups[key]
	return group, ok
}

// Groups returns the number of live detector groups.
func (e *Engine) Groups() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.groups)
}

// InterestedPairs returns the union of all explicit pair selections across
// groups. Wildcard reports whether any subscriber wants every pair.
func (e *Engine) InterestedPairs() (pairs []string, wildcard bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	union := set.NewLinkedHashSetString()
	for _, group := range e.groups {
		group.mu.Lock()
		if group.wildcards > 0 {
			wildcard = true
		}
		for pair := range group.interest {
			union.Add(pair)
		}
		group.mu.Unlock()
	}

	pairs = make([]string, 0, union.Length())
	for pair := range union.Iter() {
		pairs = append(pairs, pair)
	}
	return pairs, wildcard
}
