package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names accepted by NewSQLiteStore.
const (
	DriverCgo  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is a SQLite-backed turn log.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the turn database at path
// using the named driver.
func NewSQLiteStore(driver, path string) (*SQLiteStore, error) {
	var dsn string
	switch driver {
	case DriverCgo:
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	case DriverPure:
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open turn database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate turn schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id              TEXT PRIMARY KEY,
		run_id          INTEGER NOT NULL,
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
		terminal        INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_run ON turns(run_id, created_at, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append persists a turn.
func (s *SQLiteStore) Append(ctx context.Context, t Turn) error {
	t, err := stamp(t)
	if err != nil {
		return storageErr("append", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO turns
			(id, run_id, user_id, seq, tool, status, attempt, stdout, stderr,
			 total_tokens, prompt_tokens, response_tokens, terminal, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RunID, t.UserID, t.Seq, t.Tool, t.Status, t.Attempt, t.Stdout, t.Stderr,
		t.TotalTokens, t.PromptTokens, t.ResponseTokens, t.Terminal,
		t.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return storageErr("append", err)
	}
	return nil
}

const turnColumns = `id, run_id, user_id, seq, tool, status, attempt, stdout, stderr,
	total_tokens, prompt_tokens, response_tokens, terminal, created_at`

// RecentTurns returns up to limit of the run's latest turns, oldest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, runID int64, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM (
			SELECT * FROM turns WHERE run_id = ?
			ORDER BY created_at DESC, seq DESC LIMIT ?
		 ) ORDER BY created_at, seq`,
		runID, limit,
	)
	if err != nil {
		return nil, storageErr("read recent turns", err)
	}
	return s.scan(rows, "read recent turns")
}

// Turns returns every turn of a run, oldest first.
func (s *SQLiteStore) Turns(ctx context.Context, runID int64) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE run_id = ? ORDER BY created_at, seq`,
		runID,
	)
	if err != nil {
		return nil, storageErr("read turns", err)
	}
	return s.scan(rows, "read turns")
}

func (s *SQLiteStore) scan(rows *sql.Rows, op string) ([]Turn, error) {
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var created string
		if err := rows.Scan(&t.ID, &t.RunID, &t.UserID, &t.Seq, &t.Tool, &t.Status, &t.Attempt,
			&t.Stdout, &t.Stderr, &t.TotalTokens, &t.PromptTokens, &t.ResponseTokens,
			&t.Terminal, &created); err != nil {
			return nil, storageErr(op, err)
		}
		ts, err := time.Parse(timeLayout, created)
		if err != nil {
			return nil, storageErr(op, fmt.Errorf("parse created_at %q: %w", created, err))
		}
		t.CreatedAt = ts
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return turns, nil
}

// stamp fills the generated fields of a turn.
func stamp(t Turn) (Turn, error) {
	if t.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return t, fmt.Errorf("generate turn ID: %w", err)
		}
		t.ID = id.String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
