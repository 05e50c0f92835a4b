package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/pumpwatch/core"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLStorage implements the core.SubscriberStore interface using a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the configuration for SQL database connections
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default configuration for SQL connections
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// NewFromSQLite creates a new SQLite storage instance
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (core.SubscriberStore, error) {
	dialect := sqlite.Open(dbPath)
	return newFromSQL(dialect, config, opts...)
}

// newFromSQL creates a new SQL storage instance with the specified configuration
func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (core.SubscriberStore, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Apply configuration
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	// Auto migrate the subscriber model
	if err = db.AutoMigrate(&core.SubscriberConfig{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// Save stores a subscriber configuration, overwriting any previous version
func (s *SQLStorage) Save(ctx context.Context, config *core.SubscriberConfig) error {
	tx := s.db.WithContext(ctx)
	config.UpdatedAt = time.Now()

	if result := tx.Save(config); result.Error != nil {
		return fmt.Errorf("failed to save subscriber: %w", result.Error)
	}
	return nil
}

// Get retrieves one subscriber configuration by id
func (s *SQLStorage) Get(ctx context.Context, id int64) (*core.SubscriberConfig, error) {
	tx := s.db.WithContext(ctx)

	var config core.SubscriberConfig
	if result := tx.First(&config, id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, core.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("failed to read subscriber: %w", result.Error)
	}

	return &config, nil
}

// All retrieves every subscriber configuration ordered by last update
func (s *SQLStorage) All(ctx context.Context) ([]*core.SubscriberConfig, error) {
	tx := s.db.WithContext(ctx)

	var configs []*core.SubscriberConfig
	result := tx.Order("updated_at").Find(&configs)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch subscribers: %w", result.Error)
	}

	return configs, nil
}

// Delete removes one subscriber configuration
func (s *SQLStorage) Delete(ctx context.Context, id int64) error {
	tx := s.db.WithContext(ctx)

	result := tx.Delete(&core.SubscriberConfig{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete subscriber: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return core.ErrSubscriberNotFound
	}

	return nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
