// Package binance streams aggregated trade prints from Binance USDⓈ-M
// futures and exposes them as canonical trades.
package binance

import (
	"context"
	"sync"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/exchange"
	"github.com/samber/lo"
)

// Connector implements core.Connector for Binance. One websocket
// connection is opened per symbol shard; each shard reconnects
// independently with linear backoff.
type Connector struct {
	client *futures.Client
	trades chan core.Trade
	log    core.Logger

	mu        sync.Mutex
	subCancel context.CancelFunc
	subWait   sync.WaitGroup
}

// Option is a function that configures a Connector
type Option func(*Connector)

// WithClient overrides the REST client used for catalog fetches.
func WithClient(client *futures.Client) Option {
	return func(c *Connector) {
		c.client = client
	}
}

// NewFuturesClient creates an unauthenticated futures REST client, enough
// for the public market data endpoints used here.
func NewFuturesClient() *futures.Client {
	return futures.NewClient("", "")
}

// New creates a Binance connector.
func New(log core.Logger, options ...Option) *Connector {
	connector := &Connector{
		client: NewFuturesClient(),
		trades: make(chan core.Trade, 1024),
		log:    log.WithField("exchange", core.PlatformBinance),
	}

	for _, option := range options {
		option(connector)
	}

	return connector
}

// Platform implements core.Connector.
func (c *Connector) Platform() core.Platform {
	return core.PlatformBinance
}

// Trades implements core.Connector.
func (c *Connector) Trades() <-chan core.Trade {
	return c.trades
}

// Symbols returns all symbols currently trading on Binance futures. Fetch
// failures are reported as an empty catalog.
func (c *Connector) Symbols(ctx context.Context) ([]string, error) {
	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		c.log.WithError(err).Error("symbol catalog fetch failed")
		return []string{}, nil
	}

	symbols := lo.FilterMap(info.Symbols, func(s futures.Symbol, _ int) (string, bool) {
		return s.Symbol, s.Status == "TRADING"
	})

	c.log.Infof("fetched %d tradable symbols", len(symbols))
	return symbols, nil
}

// Subscribe closes all existing shard connections, cancels their pending
// reconnects, and opens a fresh connection per 50-symbol shard.
func (c *Connector) Subscribe(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subCancel != nil {
		c.subCancel()
		c.subWait.Wait()
	}

	if len(symbols) == 0 {
		c.subCancel = nil
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	c.subCancel = cancel

	for index, shard := range exchange.SplitShards(symbols) {
		c.subWait.Add(1)
		go c.streamShard(subCtx, shard, index)
	}

	return nil
}

// streamShard owns one websocket connection lifetime, reconnecting with
// linear backoff until the attempt budget runs out.
func (c *Connector) streamShard(ctx context.Context, symbols []string, index int) {
	defer c.subWait.Done()

	log := c.log.WithField("shard", index)
	attempts := 0

	for {
		doneC, stopC, err := futures.WsCombinedAggTradeServe(symbols,
			func(event *futures.WsAggTradeEvent) {
				trade, ok := AdaptAggTrade(event)
				if !ok {
					return
				}
				select {
				case c.trades <- trade:
				case <-ctx.Done():
				}
			},
			func(err error) {
				log.WithError(err).Warn("stream error")
			})

		if err != nil {
			attempts++
			if attempts > exchange.MaxReconnectAttempts {
				log.WithError(err).Error("reconnect budget exhausted, shard offline until resubscribe")
				return
			}
			if !exchange.WaitReconnect(ctx, attempts) {
				return
			}
			continue
		}

		attempts = 0
		log.Infof("connected (%d symbols)", len(symbols))

		select {
		case <-ctx.Done():
			close(stopC)
			return

		case <-doneC:
			attempts++
			if attempts > exchange.MaxReconnectAttempts {
				log.Error("reconnect budget exhausted, shard offline until resubscribe")
				return
			}
			log.Warnf("connection closed, reconnecting (attempt %d)", attempts)
			if !exchange.WaitReconnect(ctx, attempts) {
				return
			}
		}
	}
}
