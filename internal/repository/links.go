// Package repository persists link audit entries in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dharsanguruparan/linksigner/internal/model"
	"github.com/dharsanguruparan/linksigner/internal/storage"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LinkRepository wraps the SQL used by the worker and the server.
type LinkRepository struct {
	db DB
}

// NewLinkRepository constructs a repository.
func NewLinkRepository(db DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Record inserts rec. Replaying the same event is a no-op, so asynq retries
// are safe.
func (r *LinkRepository) Record(ctx context.Context, rec model.LinkRecord) error {
	keys := rec.SignedKeys
	if keys == nil {
		keys = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO links (id, route, signed_keys, allow_addition, expires_at, issued_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.Route, keys, rec.AllowAddition, rec.ExpiresAt, rec.IssuedAt)
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// Get returns the entry for id, or storage.ErrNotFound.
func (r *LinkRepository) Get(ctx context.Context, id string) (model.LinkRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, route, signed_keys, allow_addition, expires_at, issued_at
		FROM links WHERE id=$1
	`, id)
	rec, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LinkRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return model.LinkRecord{}, fmt.Errorf("select link: %w", err)
	}
	return rec, nil
}

// ListByRoute returns up to limit entries for route, newest first.
func (r *LinkRepository) ListByRoute(ctx context.Context, route string, limit int) ([]model.LinkRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, route, signed_keys, allow_addition, expires_at, issued_at
		FROM links WHERE route=$1
		ORDER BY issued_at DESC, id
		LIMIT $2
	`, route, limit)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var out []model.LinkRecord
	for rows.Next() {
		rec, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return out, nil
}

func scanLink(row pgx.Row) (model.LinkRecord, error) {
	var rec model.LinkRecord
	err := row.Scan(&rec.ID, &rec.Route, &rec.SignedKeys, &rec.AllowAddition, &rec.ExpiresAt, &rec.IssuedAt)
	if err != nil {
		return model.LinkRecord{}, err
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.IssuedAt = rec.IssuedAt.UTC()
	return rec, nil
}
