// Package primary is the PostgreSQL store for escalations and the decision
// audit log.
package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"curator/internal/store"
)

var _ store.Store = (*StoreImpl)(nil)

// StoreImpl implements store.Store using PostgreSQL.
type StoreImpl struct {
	db *pgxpool.Pool
}

// NewPrimaryStore connects to PostgreSQL and creates missing tables.
func NewPrimaryStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &StoreImpl{db: dbpool}
	if err := s.migrate(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection pool.
func (s *StoreImpl) Close() error {
	s.db.Close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS escalations (
	id                     TEXT PRIMARY KEY,
	cache_key              TEXT NOT NULL,
	content                JSONB NOT NULL,
	user_context           JSONB NOT NULL,
	partial_classification JSONB NOT NULL,
	priority               SMALLINT NOT NULL,
	reason                 TEXT NOT NULL,
	strategy               TEXT NOT NULL,
	provisional_action     TEXT NOT NULL,
	status                 TEXT NOT NULL DEFAULT 'pending',
	review                 JSONB,
	enqueued_at            TIMESTAMPTZ NOT NULL,
	reviewed_at            TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS escalations_status_priority_idx ON escalations (status, priority, enqueued_at);

CREATE TABLE IF NOT EXISTS decisions (
	id                 TEXT PRIMARY KEY,
	fingerprint        TEXT NOT NULL,
	content_id         TEXT,
	action             TEXT NOT NULL,
	reason             TEXT NOT NULL,
	confidence         DOUBLE PRECISION NOT NULL,
	strategy           TEXT NOT NULL,
	layers             TEXT[] NOT NULL,
	escalated          BOOLEAN NOT NULL,
	processing_time_ms BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS decisions_created_at_idx ON decisions (created_at DESC);
`

func (s *StoreImpl) migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
