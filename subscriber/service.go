// Package subscriber implements the configuration registry consulted by the
// dispatcher and mutated by the notification channel.
package subscriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raykavin/pumpwatch/core"
)

// Validation bounds for subscriber parameters.
const (
	MinThresholdPercent = 0.1
	MaxThresholdPercent = 100.0
	MinWindowSize       = time.Second
	MaxWindowSize       = 24 * time.Hour
)

// ChangeListener observes configuration changes. removed reports whether the
// configuration was deleted rather than created or updated.
type ChangeListener func(config core.SubscriberConfig, removed bool)

// Service implements core.SubscriberRegistry over a SubscriberStore, adding
// parameter validation and change notification.
type Service struct {
	store core.SubscriberStore
	log   core.Logger

	mu        sync.RWMutex
	listeners []ChangeListener
}

// NewService creates a registry over the given store.
func NewService(store core.SubscriberStore, log core.Logger) *Service {
	return &Service{store: store, log: log}
}

// OnChange registers a listener invoked after every successful mutation.
func (s *Service) OnChange(listener ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Config implements core.SubscriberRegistry.
func (s *Service) Config(ctx context.Context, id int64) (core.SubscriberConfig, error) {
	config, err := s.store.Get(ctx, id)
	if err != nil {
		return core.SubscriberConfig{}, err
	}
	return *config, nil
}

// AllConfigs implements core.SubscriberRegistry.
func (s *Service) AllConfigs(ctx context.Context) ([]core.SubscriberConfig, error) {
	stored, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	configs := make([]core.SubscriberConfig, 0, len(stored))
	for _, config := range stored {
		configs = append(configs, *config)
	}
	return configs, nil
}

// CreateConfig implements core.SubscriberRegistry. It validates parameters
// and upserts: an existing configuration with the same id is replaced.
func (s *Service) CreateConfig(ctx context.Context, config core.SubscriberConfig) error {
	if err := Validate(config); err != nil {
		return err
	}

	if err := s.store.Save(ctx, &config); err != nil {
		return err
	}

	s.notify(config, false)
	return nil
}

// DeleteConfig implements core.SubscriberRegistry.
func (s *Service) DeleteConfig(ctx context.Context, id int64) error {
	config, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.notify(*config, true)
	return nil
}

// SetState implements core.SubscriberRegistry.
func (s *Service) SetState(ctx context.Context, id int64, state core.SubscriberState) error {
	config, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if config.State == state {
		return nil
	}

	config.State = state
	if err := s.store.Save(ctx, config); err != nil {
		return err
	}

	s.notify(*config, false)
	return nil
}

func (s *Service) notify(config core.SubscriberConfig, removed bool) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(config, removed)
	}
}

// Validate checks subscriber parameters against the accepted bounds.
func Validate(config core.SubscriberConfig) error {
	if config.ThresholdPercent < MinThresholdPercent || config.ThresholdPercent > MaxThresholdPercent {
		return fmt.Errorf("%w: %.2f not in [%.1f, %.1f]",
			core.ErrInvalidThreshold, config.ThresholdPercent, MinThresholdPercent, MaxThresholdPercent)
	}
	if config.WindowSize < MinWindowSize || config.WindowSize > MaxWindowSize {
		return fmt.Errorf("%w: %s not in [%s, %s]",
			core.ErrInvalidWindowSize, config.WindowSize, MinWindowSize, MaxWindowSize)
	}
	return nil
}
