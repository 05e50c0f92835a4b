// Package exchange provides connectivity to cryptocurrency exchanges and
// fans canonical trade prints out to the detection pipeline.
package exchange

import (
	"context"
	"sync"

	"github.com/StudioSol/set"
	"github.com/raykavin/pumpwatch/core"
)

// ---------------------
// Types
// ---------------------

// TradeConsumer is a function type that processes canonical trades
type TradeConsumer func(core.Trade)

// SymbolsConsumer is notified once per connector after catalog retrieval
type SymbolsConsumer func(platform core.Platform, symbols []string)

// TradeFeedSubscription manages consumer subscriptions to the trade streams
// of every connector. Each connector's stream is drained by exactly one
// goroutine, so trades of a given (platform, pair) reach consumers in wire
// order; unrelated platforms progress in parallel.
type TradeFeedSubscription struct {
	connectors      []core.Connector
	consumers       []TradeConsumer
	symbolConsumers []SymbolsConsumer
	platforms       *set.LinkedHashSetString
	log             core.Logger
	mu              sync.RWMutex
}

// ---------------------
// Constructor
// ---------------------

// NewTradeFeed creates a new instance of TradeFeedSubscription
func NewTradeFeed(log core.Logger, connectors ...core.Connector) *TradeFeedSubscription {
	platforms := set.NewLinkedHashSetString()
	for _, connector := range connectors {
		platforms.Add(string(connector.Platform()))
	}

	return &TradeFeedSubscription{
		connectors: connectors,
		platforms:  platforms,
		log:        log,
	}
}

// ---------------------
// Public Methods
// ---------------------

// Subscribe adds a consumer for every adapted trade
func (f *TradeFeedSubscription) Subscribe(consumer TradeConsumer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumers = append(f.consumers, consumer)
}

// OnSymbolsFetched adds a consumer for catalog retrieval events
func (f *TradeFeedSubscription) OnSymbolsFetched(consumer SymbolsConsumer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbolConsumers = append(f.symbolConsumers, consumer)
}

// Connectors returns the connectors the feed drains.
func (f *TradeFeedSubscription) Connectors() []core.Connector {
	return f.connectors
}

// Start begins draining every connector stream.
func (f *TradeFeedSubscription) Start(ctx context.Context) {
	for _, connector := range f.connectors {
		go f.processStream(ctx, connector)
	}

	f.log.Infof("trade feed started for %d exchanges", f.platforms.Length())
}

// PublishSymbols notifies catalog consumers.
func (f *TradeFeedSubscription) PublishSymbols(platform core.Platform, symbols []string) {
	f.mu.RLock()
	consumers := f.symbolConsumers
	f.mu.RUnlock()

	for _, consumer := range consumers {
		consumer(platform, symbols)
	}
}

// ---------------------
// Private Methods
// ---------------------

// processStream forwards one connector's trades to all consumers
func (f *TradeFeedSubscription) processStream(ctx context.Context, connector core.Connector) {
	for {
		select {
		case <-ctx.Done():
			return

		case trade, ok := <-connector.Trades():
			if !ok {
				return
			}

			f.mu.RLock()
			consumers := f.consumers
			f.mu.RUnlock()

			for _, consumer := range consumers {
				consumer(trade)
			}
		}
	}
}
