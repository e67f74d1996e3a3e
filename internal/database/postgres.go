// Package database connects the allocation store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"adviser-allocation/internal/config"
)

const (
	pingTimeout     = 5 * time.Second
	connMaxLifetime = 30 * time.Minute

	// Connections beyond the fan-out cap, reserved for the admin surface
	// and the leave sync while allocations are in flight.
	adminHeadroom = 4
)

// Open builds the Postgres pool for the allocation store. The service is
// read-heavy and bursty: each concurrent capacity projection holds a
// connection for its leave, closure and override reads, so when no
// explicit pool size is configured the pool tracks the allocator's
// fan-out cap instead of a generic default.
func Open(cfg *config.DatabaseConfig, fanOutCap int) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open allocation store: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = fanOutCap + adminHeadroom
	}
	db.SetMaxOpenConns(maxConns)
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(connMaxLifetime)

	// Fail startup fast on a bad DSN instead of on the first allocation.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping allocation store: %w", err)
	}
	return db, nil
}
