package bot

import (
	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/exchange"
	"github.com/raykavin/pumpwatch/openinterest"
)

// Option is a functional option for configuring a Bot instance
type Option func(*Bot)

// WithStorage sets the subscriber storage, by default a local buntdb file
func WithStorage(storage core.SubscriberStore) Option {
	return func(bot *Bot) {
		bot.storage = storage
	}
}

// WithNotifier overrides the alert delivery channel, disabling the built-in
// telegram client. Useful for tests and alternative transports.
func WithNotifier(notifier core.Notifier) Option {
	return func(bot *Bot) {
		bot.notifier = notifier
	}
}

// WithTradeFeed replaces the default connector set with a prebuilt feed
func WithTradeFeed(feed *exchange.TradeFeedSubscription) Option {
	return func(bot *Bot) {
		bot.feed = feed
	}
}

// WithOpenInterestPoller replaces the default open interest poller
func WithOpenInterestPoller(poller *openinterest.Poller) Option {
	return func(bot *Bot) {
		bot.poller = poller
	}
}
