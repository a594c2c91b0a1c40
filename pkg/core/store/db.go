// Package store persists what a fill run needs between invocations: client
// records feeding the canonical store, and the per-form mapping cache that
// lets repeat forms skip the reasoning service. Postgres is optional; the
// cache falls back to JSON files when no pool is given.
package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB opens the process-wide connection pool from DATABASE_URL. Safe to
// call more than once; only the first call connects. Offline runs (demo store
// or file-backed records and cache) never need it.
func InitDB(ctx context.Context) error {
	var err error
	once.Do(func() {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			err = fmt.Errorf("DATABASE_URL environment variable not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
	})
	return err
}

// GetPool returns the pool opened by InitDB, or nil before it.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close releases the pool. Call once at process exit.
func Close() {
	if pool != nil {
		pool.Close()
	}
}
