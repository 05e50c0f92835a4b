package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/raykavin/pumpwatch/core"
	"github.com/tidwall/buntdb"
)

const (
	// DefaultIndexName is the default index used for subscriber retrieval
	DefaultIndexName = "update_index"
)

// BuntStorage implements the core.SubscriberStore interface using BuntDB
type BuntStorage struct {
	db *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB
type BuntConfig struct {
	// Additional indexes to create beyond the default update_index
	AdditionalIndexes map[string]string
	// SyncPolicy determines how often data is synchronized to disk
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig returns the default configuration for BuntDB
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{
		AdditionalIndexes: make(map[string]string),
		SyncPolicy:        buntdb.EverySecond,
	}
}

// NewFromMemory creates an in-memory storage with default configuration
func NewFromMemory() (core.SubscriberStore, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig())
}

// NewFromFile creates a file-based storage with default configuration
func NewFromFile(file string) (core.SubscriberStore, error) {
	return NewBuntStorage(file, DefaultBuntConfig())
}

// NewBuntStorage creates a new BuntDB storage instance with the specified configuration
func NewBuntStorage(sourceFile string, config BuntConfig) (core.SubscriberStore, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	// Apply configuration
	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: config.SyncPolicy,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	// Create default index for ordering by update timestamp
	if err := db.CreateIndex(DefaultIndexName, "*", buntdb.IndexJSON("updated_at")); err != nil {
		return nil, fmt.Errorf("failed to create default index: %w", err)
	}

	// Create any additional indexes from the configuration
	for name, pattern := range config.AdditionalIndexes {
		if err := db.CreateIndex(name, "*", buntdb.IndexJSON(pattern)); err != nil {
			return nil, fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return &BuntStorage{
		db: db,
	}, nil
}

// Save stores a subscriber configuration, overwriting any previous version
func (b *BuntStorage) Save(_ context.Context, config *core.SubscriberConfig) error {
	// Use a context-aware version if BuntDB adds context support in future
	return b.db.Update(func(tx *buntdb.Tx) error {
		config.UpdatedAt = time.Now()

		content, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal subscriber: %w", err)
		}

		key := strconv.FormatInt(config.ID, 10)
		_, _, err = tx.Set(key, string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store subscriber: %w", err)
		}

		return nil
	})
}

// Get retrieves one subscriber configuration by id
func (b *BuntStorage) Get(_ context.Context, id int64) (*core.SubscriberConfig, error) {
	var config core.SubscriberConfig

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(strconv.FormatInt(id, 10))
		if err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return core.ErrSubscriberNotFound
			}
			return fmt.Errorf("failed to read subscriber: %w", err)
		}

		if err := json.Unmarshal([]byte(value), &config); err != nil {
			return fmt.Errorf("failed to unmarshal subscriber: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return &config, nil
}

// All retrieves every subscriber configuration ordered by last update
func (b *BuntStorage) All(_ context.Context) ([]*core.SubscriberConfig, error) {
	configs := make([]*core.SubscriberConfig, 0)

	// Use a context-aware version if BuntDB adds context support in future
	err := b.db.View(func(tx *buntdb.Tx) error {
		err := tx.Ascend(DefaultIndexName, func(key, value string) bool {
			var config core.SubscriberConfig
			if err := json.Unmarshal([]byte(value), &config); err != nil {
				log.Printf("Failed to unmarshal subscriber %s: %v", key, err)
				return true // Continue iteration
			}

			configs = append(configs, &config)
			return true
		})

		if err != nil {
			return fmt.Errorf("failed to iterate over subscribers: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}

	return configs, nil
}

// Delete removes one subscriber configuration
func (b *BuntStorage) Delete(_ context.Context, id int64) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(strconv.FormatInt(id, 10))
		if err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return core.ErrSubscriberNotFound
			}
			return fmt.Errorf("failed to delete subscriber: %w", err)
		}
		return nil
	})
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
