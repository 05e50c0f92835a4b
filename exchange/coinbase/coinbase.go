// Package coinbase streams match prints from the Coinbase Exchange
// websocket feed and exposes them as canonical trades.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raykavin/pumpwatch/core"
	"github.com/raykavin/pumpwatch/exchange"
	"github.com/samber/lo"
)

const (
	feedURL      = "wss://ws-feed.exchange.coinbase.com"
	productsURL  = "https://api.exchange.coinbase.com/products"
	fetchTimeout = 15 * time.Second
)

// Connector implements core.Connector for Coinbase Exchange.
type Connector struct {
	httpClient *http.Client
	trades     chan core.Trade
	log        core.Logger

	mu        sync.Mutex
	subCancel context.CancelFunc
	subWait   sync.WaitGroup
}

// Option is a function that configures a Connector
type Option func(*Connector)

// WithHTTPClient overrides the client used for catalog fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) {
		c.httpClient = client
	}
}

// New creates a Coinbase connector.
func New(log core.Logger, options ...Option) *Connector {
	connector := &Connector{
		httpClient: &http.Client{Timeout: fetchTimeout},
		trades:     make(chan core.Trade, 1024),
		log:        log.WithField("exchange", core.PlatformCoinbase),
	}

	for _, option := range options {
		option(connector)
	}

	return connector
}

// Platform implements core.Connector.
func (c *Connector) Platform() core.Platform {
	return core.PlatformCoinbase
}

// Trades implements core.Connector.
func (c *Connector) Trades() <-chan core.Trade {
	return c.trades
}

// Symbols returns all products currently online. Fetch failures are
// reported as an empty catalog.
func (c *Connector) Symbols(ctx context.Context) ([]string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, productsURL, nil)
	if err != nil {
		return []string{}, nil
	}
	request.Header.Set("User-Agent", "pumpwatch")

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.log.WithError(err).Error("symbol catalog fetch failed")
		return []string{}, nil
	}
	defer response.Body.Close()

	var products []product
	if err := json.NewDecoder(response.Body).Decode(&products); err != nil {
		c.log.WithError(err).Error("symbol catalog decode failed")
		return []string{}, nil
	}

	symbols := lo.FilterMap(products, func(p product, _ int) (string, bool) {
		return p.ID, p.Status == "online" && !p.TradingDisabled
	})

	c.log.Infof("fetched %d tradable products", len(symbols))
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

func (c *Connector) streamShard(ctx context.Context, symbols []string, index int) {
	defer c.subWait.Done()

	log := c.log.WithField("shard", index)
	attempts := 0

	for {
		opened, err := c.runConnection(ctx, symbols, log)
		if ctx.Err() != nil {
			return
		}

		if opened {
			attempts = 0
		}
		attempts++

		if attempts > exchange.MaxReconnectAttempts {
			log.WithError(err).Error("reconnect budget exhausted, shard offline until resubscribe")
			return
		}

		log.WithError(err).Warnf("connection lost, reconnecting (attempt %d)", attempts)
		if !exchange.WaitReconnect(ctx, attempts) {
			return
		}
	}
}

func (c *Connector) runConnection(ctx context.Context, symbols []string, log core.Logger) (opened bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, feedURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	subscription := subscribeRequest{
		Type: "subscribe",
		Channels: []channel{
			{Name: "matches", ProductIDs: symbols},
			{Name: "heartbeat", ProductIDs: symbols},
		},
	}
	if err := conn.WriteJSON(subscription); err != nil {
		return false, fmt.Errorf("subscribe failed: %w", err)
	}

	log.Infof("connected (%d products)", len(symbols))

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Close the socket on teardown so the blocked read below returns.
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		if trade, ok := AdaptMessage(payload); ok {
			select {
			case c.trades <- trade:
			case <-ctx.Done():
				return true, ctx.Err()
			}
			continue
		}

		// The feed reports subscription problems in-band.
		var message feedMessage
		if json.Unmarshal(payload, &message) == nil && message.Type == "error" {
			log.Errorf("feed error: %s (%s)", message.Message, message.Reason)
		}
	}
}
