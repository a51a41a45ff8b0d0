// Package store implements the entity store and the
// persistence layer for every other domain record: interactions, messages,
// topical segments, activities, commitments, and pending approvals. It is
// built directly on jackc/pgx/v5: one service type over a hand-written
// schema constant, applied idempotently on every startup.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool and exposes the domain operations used
// by every other component.
type Store struct {
	Pool *pgxpool.Pool
}

// Open connects to Postgres, applies Schema, and runs the best-effort
// migrations list. It is safe to call on every process start.
func Open(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			slog.Warn("store: migration statement failed, continuing", slog.String("stmt", stmt), slog.Any("err", err))
		}
	}
	if _, err := pool.Exec(ctx, `INSERT INTO schema_migrations (version) SELECT 1 WHERE NOT EXISTS (SELECT 1 FROM schema_migrations)`); err != nil {
		slog.Warn("store: version marker insert failed", slog.Any("err", err))
	}

	return &Store{Pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.Pool.Close()
}
