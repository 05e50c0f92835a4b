package core

import "time"

// SubscriberState describes the delivery state of a subscriber.
type SubscriberState string

const (
	StateActive  SubscriberState = "ACTIVE"
	StateStopped SubscriberState = "STOPPED"
)

// SubscriberConfig holds the detection parameters and delivery filters of a
// single subscriber. Subscribers sharing ThresholdPercent and WindowSize are
// served by one detector group.
type SubscriberConfig struct {
	ID               int64           `json:"id" gorm:"primaryKey"`
	ThresholdPercent float64         `json:"threshold_percent"`
	WindowSize       time.Duration   `json:"window_size"`
	SelectedPairs    []string        `json:"selected_pairs" gorm:"serializer:json"`
	StoppedExchanges []Platform      `json:"stopped_exchanges" gorm:"serializer:json"`
	State            SubscriberState `json:"state"`
	ValidUntil       time.Time       `json:"valid_until"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// WantsPair reports whether the subscriber is interested in the given pair.
// An empty selection means every pair.
func (c SubscriberConfig) WantsPair(pair string) bool {
	if len(c.SelectedPairs) == 0 {
		return true
	}
	for _, p := range c.SelectedPairs {
		if p == pair {
			return true
		}
	}
	return false
}

// ExchangeStopped reports whether the subscriber muted the given platform.
func (c SubscriberConfig) ExchangeStopped(platform Platform) bool {
	for _, p := range c.StoppedExchanges {
		if p == platform {
			return true
		}
	}
	return false
}

// Deliverable reports whether alerts may be sent to the subscriber at all.
func (c SubscriberConfig) Deliverable(now time.Time) bool {
	if c.State != StateActive {
		return false
	}
	if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
		return false
	}
	return true
}
