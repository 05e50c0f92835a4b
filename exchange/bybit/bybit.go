// Package bybit streams linear-perpetual trade prints from the Bybit v5
// public websocket and exposes them as canonical trades.
package bybit

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
	streamURL      = "wss://stream.bybit.com/v5/public/linear"
	instrumentsURL = "https://api.bybit.com/v5/market/instruments-info?category=linear&limit=1000"
	pingInterval   = 20 * time.Second
	fetchTimeout   = 15 * time.Second
)

// Connector implements core.Connector for Bybit linear perpetuals.
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

// New creates a Bybit connector.
func New(log core.Logger, options ...Option) *Connector {
	connector := &Connector{
		httpClient: &http.Client{Timeout: fetchTimeout},
		trades:     make(chan core.Trade, 1024),
		log:        log.WithField("exchange", core.PlatformBybit),
	}

	for _, option := range options {
		option(connector)
	}

	return connector
}

// Platform implements core.Connector.
func (c *Connector) Platform() core.Platform {
	return core.PlatformBybit
}

// Trades implements core.Connector.
func (c *Connector) Trades() <-chan core.Trade {
	return c.trades
}

// Symbols returns all USDT linear symbols currently trading. Fetch
// failures are reported as an empty catalog.
func (c *Connector) Symbols(ctx context.Context) ([]string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, instrumentsURL, nil)
	if err != nil {
		return []string{}, nil
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.log.WithError(err).Error("symbol catalog fetch failed")
		return []string{}, nil
	}
	defer response.Body.Close()

	var payload instrumentsResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		c.log.WithError(err).Error("symbol catalog decode failed")
		return []string{}, nil
	}

	if payload.RetCode != 0 {
		c.log.Errorf("symbol catalog fetch rejected: %s", payload.RetMsg)
		return []string{}, nil
	}

	symbols := lo.FilterMap(payload.Result.List, func(i instrument, _ int) (string, bool) {
		return i.Symbol, i.Status == "Trading" && i.QuoteCoin == "USDT"
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

// runConnection drives a single websocket connection lifetime: dial,
// subscribe, then forward trade frames until the connection dies or the
// shard is torn down.
func (c *Connector) runConnection(ctx context.Context, symbols []string, log core.Logger) (opened bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	topics := lo.Map(symbols, func(symbol string, _ int) string {
		return "publicTrade." + symbol
	})
	if err := conn.WriteJSON(subscribeRequest{Op: "subscribe", Args: topics}); err != nil {
		return false, fmt.Errorf("subscribe failed: %w", err)
	}

	log.Infof("connected (%d symbols)", len(symbols))

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Close the socket on teardown so the blocked read below returns, and
	// keep the connection alive with protocol-level pings.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-connCtx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteJSON(subscribeRequest{Op: "ping"}); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		trade, ok := AdaptMessage(payload)
		if !ok {
			continue
		}

		select {
		case c.trades <- trade:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
