package detector

import (
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/raykavin/pumpwatch/core"
)

// GroupKey is the pair of detection parameters shared by every subscriber of
// one group. Subscribers with identical parameters attach to the same
// window and detector, so one update cycle per trade serves all of them.
type GroupKey struct {
	ThresholdPercent float64
	WindowSize       time.Duration
}

// Alert couples a detected pump with the subscribers of the group that
// produced it. Per-subscriber delivery eligibility is the dispatcher's job.
type Alert struct {
	Event       core.PumpEvent
	Subscribers []int64
}

// Group binds one detector and its windows to the subscribers sharing the
// group's parameters. Group state is guarded by its own mutex so unrelated
// groups progress in parallel.
type Group struct {
	mu          sync.Mutex
	key         GroupKey
	subscribers *set.LinkedHashSetINT64
	selections  map[int64][]string
	wildcards   int            // subscribers with an empty pair selection
	interest    map[string]int // pair -> subscriber refcount
	windows     map[PairKey]*Window
	detector    *Detector
}

func newGroup(key GroupKey) *Group {
	return &Group{
		key:         key,
		subscribers: set.NewLinkedHashSetINT64(),
		selections:  make(map[int64][]string),
		interest:    make(map[string]int),
		windows:     make(map[PairKey]*Window),
		detector:    NewDetector(key.ThresholdPercent, key.WindowSize),
	}
}

func (g *Group) add(cfg core.SubscriberConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.subscribers.InArray(cfg.ID) {
		g.removeLocked(cfg.ID)
	}

	g.subscribers.Add(cfg.ID)
	g.selections[cfg.ID] = cfg.SelectedPairs
	if len(cfg.SelectedPairs) == 0 {
		g.wildcards++
		return
	}
	for _, pair := range cfg.SelectedPairs {
		g.interest[pair]++
	}
}

func (g *Group) remove(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeLocked(id)
}

func (g *Group) removeLocked(id int64) bool {
	if !g.subscribers.InArray(id) {
		return false
	}

	g.subscribers.Remove(id)
	selection := g.selections[id]
	delete(g.selections, id)

	if len(selection) == 0 {
		g.wildcards--
	} else {
		for _, pair := range selection {
			if g.interest[pair]--; g.interest[pair] <= 0 {
				delete(g.interest, pair)
			}
		}
	}
	return true
}

func (g *Group) empty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscribers.Length() == 0
}

func (g *Group) interestedIn(pair string) bool {
	if g.wildcards > 0 {
		return true
	}
	return g.interest[pair] > 0
}

// handleTrade applies the trade to the pair's window and evaluates the
// detector once on behalf of every subscriber in the group.
func (g *Group) handleTrade(t core.Trade) (Alert, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.interestedIn(t.Pair) {
		return Alert{}, false
	}

	key := PairKey{Platform: t.Platform, Pair: t.Pair}
	w, ok := g.windows[key]
	if !ok {
		w = NewWindow(g.key.WindowSize)
		g.windows[key] = w
	}
	w.Add(t)

	event, ok := g.detector.Evaluate(key, w, t.TimestampMs)
	if !ok {
		return Alert{}, false
	}

	return Alert{Event: event, Subscribers: g.subscriberIDs()}, true
}

func (g *Group) subscriberIDs() []int64 {
	ids := make([]int64, 0, g.subscribers.Length())
	for id := range g.subscribers.Iter() {
		ids = append(ids, id)
	}
	return ids
}

// Subscribers returns the subscriber ids attached to the group.
func (g *Group) Subscribers() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscriberIDs()
}
