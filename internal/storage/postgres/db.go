// Package postgres stores the question log and unanswered queue in
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the connection pool shared by the repositories.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB connects to dsn.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close releases the pool.
func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS question_log (
  id TEXT PRIMARY KEY,
  question TEXT NOT NULL,
  reply TEXT NOT NULL DEFAULT '',
  asked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  is_unanswered BOOLEAN NOT NULL DEFAULT FALSE,
  small_talk BOOLEAN NOT NULL DEFAULT FALSE,
  conversation_id TEXT NOT NULL DEFAULT '',
  ip TEXT NOT NULL DEFAULT '',
  chunks_used INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_question_log_asked_at ON question_log(asked_at DESC);

CREATE TABLE IF NOT EXISTS unanswered_questions (
  id TEXT PRIMARY KEY,
  question TEXT NOT NULL,
  question_key TEXT NOT NULL UNIQUE,
  reply_given TEXT NOT NULL DEFAULT '',
  first_asked TIMESTAMPTZ NOT NULL,
  last_asked TIMESTAMPTZ NOT NULL,
  ask_count INT NOT NULL DEFAULT 1,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','answered','ignored')),
  answer TEXT NOT NULL DEFAULT '',
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_unanswered_last_asked ON unanswered_questions(last_asked DESC);
`

// Migrate creates the tables when missing. It is safe to run on every start.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
