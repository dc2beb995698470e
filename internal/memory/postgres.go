package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL-backed turn log for deployments where
// several workers share one store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, verifies connectivity and creates
// the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: parse postgres DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("memory: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory: ping pool: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory: migrate: %w", err)
	}
	return s, nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS agent_turns (
		id              UUID PRIMARY KEY,
		run_id          BIGINT NOT NULL,
		user_id         INTEGER NOT NULL,
		seq             INTEGER NOT NULL,
		tool            TEXT NOT NULL,
		status          TEXT NOT NULL,
		attempt         TEXT NOT NULL,
		stdout          TEXT NOT NULL,
		stderr          TEXT NOT NULL,
		total_tokens    INTEGER NOT NULL DEFAULT 0,
		prompt_tokens   INTEGER NOT NULL DEFAULT 0,
		response_tokens INTEGER NOT NULL DEFAULT 0,
		terminal        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_turns_run ON agent_turns(run_id, created_at, seq);
	`)
	return err
}

// Append persists a turn.
func (s *PostgresStore) Append(ctx context.Context, t Turn) error {
	t, err := stamp(t)
	if err != nil {
		return storageErr("append", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO agent_turns
			(id, run_id, user_id, seq, tool, status, attempt, stdout, stderr,
			 total_tokens, prompt_tokens, response_tokens, terminal, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.RunID, t.UserID, t.Seq, t.Tool, t.Status, t.Attempt, t.Stdout, t.Stderr,
		t.TotalTokens, t.PromptTokens, t.ResponseTokens, t.Terminal, t.CreatedAt,
	)
	if err != nil {
		return storageErr("append", err)
	}
	return nil
}

// RecentTurns returns up to limit of the run's latest turns, oldest first.
func (s *PostgresStore) RecentTurns(ctx context.Context, runID int64, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT * FROM (
			SELECT id::text, run_id, user_id, seq, tool, status, attempt, stdout, stderr,
			       total_tokens, prompt_tokens, response_tokens, terminal, created_at
			FROM agent_turns WHERE run_id = $1
			ORDER BY created_at DESC, seq DESC LIMIT $2
		 ) recent ORDER BY created_at, seq`,
		runID, limit,
	)
	if err != nil {
		return nil, storageErr("read recent turns", err)
	}
	return collectTurns(rows, "read recent turns")
}

// Turns returns every turn of a run, oldest first.
func (s *PostgresStore) Turns(ctx context.Context, runID int64) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, run_id, user_id, seq, tool, status, attempt, stdout, stderr,
		        total_tokens, prompt_tokens, response_tokens, terminal, created_at
		 FROM agent_turns WHERE run_id = $1 ORDER BY created_at, seq`,
		runID,
	)
	if err != nil {
		return nil, storageErr("read turns", err)
	}
	return collectTurns(rows, "read turns")
}

func collectTurns(rows pgx.Rows, op string) ([]Turn, error) {
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Turn, error) {
		var t Turn
		err := row.Scan(&t.ID, &t.RunID, &t.UserID, &t.Seq, &t.Tool, &t.Status, &t.Attempt,
			&t.Stdout, &t.Stderr, &t.TotalTokens, &t.PromptTokens, &t.ResponseTokens,
			&t.Terminal, &t.CreatedAt)
		t.CreatedAt = t.CreatedAt.UTC()
		return t, err
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, storageErr(op, err)
	}
	return turns, nil
}
