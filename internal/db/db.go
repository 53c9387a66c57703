// Package db mirrors runs, artifacts, and scheduled items to PostgreSQL
// for audit and post-hoc analysis. The in-memory stores remain the
// source of truth; nothing is read back on startup.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the mirror tables when they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			stage_index INT NOT NULL DEFAULT 0,
			error_stage TEXT,
			error_kind TEXT,
			error_message TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS artifacts (
			run_id UUID NOT NULL REFERENCES pipeline_runs(id),
			stage TEXT NOT NULL,
			content JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, stage)
		);
		CREATE TABLE IF NOT EXISTS scheduled_items (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES pipeline_runs(id),
			payload JSONB NOT NULL,
			scheduled_time TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			platforms TEXT[] NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT,
			published_ref TEXT,
			enqueued_at TIMESTAMPTZ NOT NULL,
			dispatched_at TIMESTAMPTZ,
			published_at TIMESTAMPTZ
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
