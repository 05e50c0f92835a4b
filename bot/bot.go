// Package bot wires connectors, detection, dispatch and the notification
// channel into one runnable pump watcher.
package bot

import (
	"context"
	"fmt"

	"github.com/StudioSol/set"
	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/detector"
	"github.com/raykavin/pumpwatch/dispatch"
	"github.com/raykavin/pumpwatch/exchange"
	"github.com/raykavin/pumpwatch/exchange/binance"
	"github.com/raykavin/pumpwatch/exchange/bybit"
	"github.com/raykavin/pumpwatch/exchange/coinbase"
	"github.com/raykavin/pumpwatch/notification"
	"github.com/raykavin/pumpwatch/openinterest"
	"github.com/raykavin/pumpwatch/storage"
	"github.com/raykavin/pumpwatch/subscriber"
	"github.com/samber/lo"
)

const defaultDatabase = "pumpwatch.db"

// Bot represents the main pump watcher
type Bot struct {
	storage  core.SubscriberStore
	notifier core.Notifier
	telegram core.NotifierWithStart
	log      core.Logger

	settings   *core.Settings
	registry   *subscriber.Service
	engine     *detector.Engine
	feed       *exchange.TradeFeedSubscription
	dispatcher *dispatch.Dispatcher
	poller     *openinterest.Poller

	// full symbol catalog per platform, fetched once at startup
	catalogs map[core.Platform][]string

	runCtx context.Context
	cancel context.CancelFunc
}

// NewBot creates a new Bot instance with the provided settings and dependencies
func NewBot(settings *core.Settings, log core.Logger, options ...Option) (*Bot, error) {
	bot := &Bot{
		settings: settings,
		log:      log,
		engine:   detector.NewEngine(log),
		catalogs: make(map[core.Platform][]string),
	}

	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	// Apply custom options
	for _, option := range options {
		option(bot)
	}

	// Initialize storage
	if err := initializeStorage(bot); err != nil {
		return nil, err
	}
	bot.registry = subscriber.NewService(bot.storage, log)

	// Initialize connectors and the trade feed
	if bot.feed == nil {
		connectors, err := buildConnectors(settings.Exchanges, log)
		if err != nil {
			return nil, err
		}
		bot.feed = exchange.NewTradeFeed(log, connectors...)
	}

	// Initialize open interest polling
	if settings.OpenInterest.Enabled && bot.poller == nil {
		bot.poller = openinterest.NewPoller(
			settings.OpenInterest.Interval,
			log,
			openinterest.NewBinanceFetcher(binance.NewFuturesClient()),
			openinterest.NewBybitFetcher(),
		)
	}

	// Initialize notification systems
	if err := initializeNotifications(bot, settings); err != nil {
		return nil, err
	}

	bot.dispatcher = buildDispatcher(bot, settings)

	return bot, nil
}

// validateSettings ensures the configured exchanges are known
func validateSettings(settings *core.Settings) error {
	for _, platform := range settings.Exchanges {
		switch platform {
		case core.PlatformBinance, core.PlatformBybit, core.PlatformCoinbase:
		default:
			return fmt.Errorf("unknown exchange: %s", platform)
		}
	}
	return nil
}

// initializeStorage sets up the bot's subscriber storage
func initializeStorage(bot *Bot) error {
	var err error
	if bot.storage == nil {
		path := bot.settings.StoragePath
		if path == "" {
			path = defaultDatabase
		}
		bot.storage, err = storage.NewFromFile(path)
		if err != nil {
			return err
		}
	}
	return nil
}

// initializeNotifications sets up notification systems like Telegram
func initializeNotifications(bot *Bot, settings *core.Settings) error {
	if bot.notifier != nil || !settings.Telegram.Enabled {
		return nil
	}

	telegram, err := notification.NewTelegram(bot.registry, settings, bot.log)
	if err != nil {
		return err
	}

	bot.telegram = telegram
	bot.notifier = telegram
	return nil
}

func buildConnectors(platforms []core.Platform, log core.Logger) ([]core.Connector, error) {
	connectors := make([]core.Connector, 0, len(platforms))
	for _, platform := range platforms {
		switch platform {
		case core.PlatformBinance:
			connectors = append(connectors, binance.New(log))
		case core.PlatformBybit:
			connectors = append(connectors, bybit.New(log))
		case core.PlatformCoinbase:
			connectors = append(connectors, coinbase.New(log))
		default:
			return nil, fmt.Errorf("unknown exchange: %s", platform)
		}
	}
	return connectors, nil
}

func buildDispatcher(bot *Bot, settings *core.Settings) *dispatch.Dispatcher {
	limiter := dispatch.NewLimiter(
		float64(settings.Telegram.SendsPerSecond),
		settings.Telegram.MinSendInterval,
		1,
	)

	options := []dispatch.Option{}
	if bot.poller != nil {
		options = append(options, dispatch.WithOpenInterest(bot.poller))
	}

	return dispatch.NewDispatcher(bot.registry, bot.notifier, limiter, bot.engine, bot.log, options...)
}

// Registry returns the subscriber registry
func (bot *Bot) Registry() core.SubscriberRegistry {
	return bot.registry
}

// Engine returns the detector group engine
func (bot *Bot) Engine() *detector.Engine {
	return bot.engine
}

// Run loads the stored subscribers, opens the exchange streams and blocks
// until the context is cancelled
func (bot *Bot) Run(ctx context.Context) error {
	bot.runCtx, bot.cancel = context.WithCancel(ctx)

	// rebuild detector groups from stored configurations
	configs, err := bot.registry.AllConfigs(bot.runCtx)
	if err != nil {
		return fmt.Errorf("failed to load subscribers: %w", err)
	}
	for _, config := range configs {
		if config.State == core.StateActive {
			bot.engine.AddSubscriber(config)
		}
	}

	// configuration changes reshape groups and stream subscriptions
	bot.registry.OnChange(bot.onConfigChange)

	// route every trade through the engine, dispatching detected pumps
	bot.feed.Subscribe(bot.onTrade)
	bot.feed.Start(bot.runCtx)

	// fetch the symbol catalogs and open the initial streams
	for _, connector := range bot.feed.Connectors() {
		symbols, err := connector.Symbols(bot.runCtx)
		if err != nil {
			bot.log.WithError(err).Errorf("failed to fetch %s symbols", connector.Platform())
		}
		bot.catalogs[connector.Platform()] = symbols
		bot.feed.PublishSymbols(connector.Platform(), symbols)
	}
	bot.resubscribe()

	if bot.telegram != nil {
		bot.telegram.Start()
	}

	bot.log.WithFields(map[string]any{
		"exchanges":   len(bot.feed.Connectors()),
		"subscribers": len(configs),
	}).Info("pump watcher started")

	<-bot.runCtx.Done()
	bot.shutdown()
	return nil
}

// Stop cancels the run context, tearing down streams and pollers
func (bot *Bot) Stop() {
	if bot.cancel != nil {
		bot.cancel()
	}
}

func (bot *Bot) shutdown() {
	if bot.poller != nil {
		bot.poller.Stop()
	}
	if bot.telegram != nil {
		bot.telegram.Stop()
	}
	if err := bot.storage.Close(); err != nil {
		bot.log.WithError(err).Error("failed to close storage")
	}
}

// onTrade feeds one canonical trade to the engine and dispatches any alerts
func (bot *Bot) onTrade(trade core.Trade) {
	for _, alert := range bot.engine.HandleTrade(trade) {
		go bot.dispatcher.SendAlerts(bot.runCtx, alert.Event, alert.Subscribers)
	}
}

// onConfigChange mirrors a registry mutation into the detector groups and
// recomputes the streamed symbol set
func (bot *Bot) onConfigChange(config core.SubscriberConfig, removed bool) {
	switch {
	case removed, config.State != core.StateActive:
		bot.engine.RemoveSubscriber(config.ID)
	default:
		bot.engine.UpdateSubscriber(config)
	}

	bot.resubscribe()
}

// resubscribe reopens every connector's streams on the union of the pairs
// the current subscribers selected. Any wildcard selection streams the full
// catalog.
func (bot *Bot) resubscribe() {
	pairs, wildcard := bot.engine.InterestedPairs()

	selected := set.NewLinkedHashSetString()
	for _, pair := range pairs {
		selected.Add(pair)
	}

	for _, connector := range bot.feed.Connectors() {
		platform := connector.Platform()
		catalog := bot.catalogs[platform]

		symbols := catalog
		if !wildcard {
			symbols = lo.Filter(catalog, func(symbol string, _ int) bool {
				return selected.InArray(symbol)
			})
		}

		if err := connector.Subscribe(bot.runCtx, symbols); err != nil {
			bot.log.WithError(err).Errorf("failed to subscribe %s streams", platform)
		}

		if bot.poller != nil && bot.poller.Supports(platform) {
			bot.poller.StartPolling(bot.runCtx, platform, symbols)
		}
	}
}
