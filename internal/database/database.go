// Package database opens the Postgres pool and owns the schema.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the links audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS links (
	id TEXT PRIMARY KEY,
	route TEXT NOT NULL,
	signed_keys TEXT[] NOT NULL,
	allow_addition BOOLEAN NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	issued_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_links_route_issued ON links(route, issued_at DESC);`

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		// pgx echoes the DSN, password included, in parse errors.
		return nil, errors.New("parse database url")
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return pool, nil
}

// Execer runs a statement.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the links table if needed.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
