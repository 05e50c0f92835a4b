package core

import (
	"context"
	"time"
)

// Connector is a streaming connection to one exchange. Implementations own
// their shard connections and reconnect failed shards independently.
type Connector interface {
	// Platform returns the exchange identity of the connector.
	Platform() Platform
	// Symbols returns the catalog of tradable symbols. A fetch failure is
	// reported as an empty catalog, never as a crash.
	Symbols(ctx context.Context) ([]string, error)
	// Subscribe tears down all existing shard connections, cancelling any
	// pending reconnects, and opens new connections for the given symbols.
	Subscribe(ctx context.Context, symbols []string) error
	// Trades is the channel of canonical trades emitted by the connector.
	Trades() <-chan Trade
}

// Notifier delivers alert text to a single destination. Permanent delivery
// failures are reported as ErrRecipientBlocked or ErrRecipientNotFound.
type Notifier interface {
	Send(ctx context.Context, destination int64, text string) error
}

// NotifierWithStart is a notifier that runs its own receive loop.
type NotifierWithStart interface {
	Notifier
	Start()
	Stop()
}

// SubscriberRegistry is the configuration collaborator consulted on every
// dispatch to filter eligible recipients.
type SubscriberRegistry interface {
	Config(ctx context.Context, id int64) (SubscriberConfig, error)
	AllConfigs(ctx context.Context) ([]SubscriberConfig, error)
	CreateConfig(ctx context.Context, config SubscriberConfig) error
	DeleteConfig(ctx context.Context, id int64) error
	SetState(ctx context.Context, id int64, state SubscriberState) error
}

// SubscriberStore persists subscriber configurations.
type SubscriberStore interface {
	Save(ctx context.Context, config *SubscriberConfig) error
	Get(ctx context.Context, id int64) (*SubscriberConfig, error)
	All(ctx context.Context) ([]*SubscriberConfig, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// OpenInterestSource exposes the poller's cached snapshots to the dispatcher.
type OpenInterestSource interface {
	Snapshot(platform Platform, symbol string) (OpenInterestSnapshot, bool)
}

// Settings represents the main configuration for the application
type Settings struct {
	Telegram          TelegramSettings
	Exchanges         []Platform    // Exchanges to stream from
	DefaultThreshold  float64       // Threshold percent for new subscribers
	DefaultWindowSize time.Duration // Window size for new subscribers
	OpenInterest      OpenInterestSettings
	StoragePath       string
}

// TelegramSettings holds configuration for Telegram integration
type TelegramSettings struct {
	Enabled         bool
	Token           string
	SendsPerSecond  int           // Rolling one second send budget
	MinSendInterval time.Duration // Minimum spacing between sends
}

// OpenInterestSettings holds the polling schedule for open interest data.
type OpenInterestSettings struct {
	Enabled  bool
	Interval time.Duration
}
