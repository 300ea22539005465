// Package analytics provides read-only access to the Postgres
// time-series analytics store: connection management and the bounded
// preview execution used to validate generated queries before
// provisioning.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Config holds connection settings for the analytics store.
type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("analytics database URL is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("analytics ping timeout must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("analytics max open conns must be >= 1")
	}
	return nil
}

// Open opens a pooled connection to the analytics store via the pgx
// stdlib driver and verifies it with a bounded ping.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening analytics store: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging analytics store: %w", err)
	}

	return db, nil
}
