// Package usage is the per-call token ledger. Every model call made by
// the planner or the worker is priced and appended; rows are never
// updated.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/nugget/savant/internal/config"
)

// Roles recorded on usage rows.
const (
	RoleWorker  = "worker"
	RolePlanner = "planner"
)

// timeLayout is fixed width so timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Record is one model call.
type Record struct {
	ID           string
	Timestamp    time.Time
	RunID        int64
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Role         string
}

// Summary aggregates a set of records.
type Summary struct {
	TotalRecords      int     `json:"records"`
	TotalInputTokens  int64   `json:"input_tokens"`
	TotalOutputTokens int64   `json:"output_tokens"`
	TotalCostUSD      float64 `json:"cost_usd"`
}

// Store is the SQLite-backed ledger. It is safe for concurrent use; a
// single connection serializes writes.
type Store struct {
	db *sql.DB
}

var dsnParams = map[string]string{
	"sqlite3": "?_journal_mode=WAL&_busy_timeout=5000",
	"sqlite":  "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
}

// NewStore opens (creating if needed) the ledger at path. driver is
// "sqlite3" (cgo) or "sqlite" (pure Go).
func NewStore(driver, path string) (*Store, error) {
	params, ok := dsnParams[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported usage driver %q", driver)
	}
	db, err := sql.Open(driver, path+params)
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS usage_records (
		id            TEXT PRIMARY KEY,
		timestamp     TEXT NOT NULL,
		run_id        INTEGER NOT NULL,
		model         TEXT NOT NULL,
		provider      TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd      REAL NOT NULL,
		role          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_run ON usage_records(run_id);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record appends rec, filling a UUIDv7 ID and the current time when
// they are empty.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate usage record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, timestamp, run_id, model, provider, input_tokens, output_tokens, cost_usd, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC().Format(timeLayout), rec.RunID, rec.Model, rec.Provider,
		rec.InputTokens, rec.OutputTokens, rec.CostUSD, rec.Role,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

const totalsColumns = `COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)`

func (sum *Summary) fields() []any {
	return []any{&sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalCostUSD}
}

func window(start, end time.Time) []any {
	return []any{start.UTC().Format(timeLayout), end.UTC().Format(timeLayout)}
}

// Summary totals records with start <= timestamp < end.
func (s *Store) Summary(ctx context.Context, start, end time.Time) (*Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT `+totalsColumns+` FROM usage_records WHERE timestamp >= ? AND timestamp < ?`,
		window(start, end)...,
	).Scan(sum.fields()...)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}

// RunSummary totals every record of one run.
func (s *Store) RunSummary(ctx context.Context, runID int64) (*Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT `+totalsColumns+` FROM usage_records WHERE run_id = ?`, runID,
	).Scan(sum.fields()...)
	if err != nil {
		return nil, fmt.Errorf("query run usage: %w", err)
	}
	return &sum, nil
}

// SummaryByModel totals records in [start, end) per model.
func (s *Store) SummaryByModel(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	return s.groupBy(ctx, "model", start, end)
}

// SummaryByRole totals records in [start, end) per role.
func (s *Store) SummaryByRole(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	return s.groupBy(ctx, "role", start, end)
}

// groupBy is only called with column names fixed in this file.
func (s *Store) groupBy(ctx context.Context, column string, start, end time.Time) (map[string]*Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, `+totalsColumns+` FROM usage_records
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY `+column,
		window(start, end)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by %s: %w", column, err)
	}
	defer rows.Close()

	out := make(map[string]*Summary)
	for rows.Next() {
		var key string
		sum := new(Summary)
		if err := rows.Scan(append([]any{&key}, sum.fields()...)...); err != nil {
			return nil, fmt.Errorf("scan usage by %s: %w", column, err)
		}
		out[key] = sum
	}
	return out, rows.Err()
}

// ComputeCost prices a call from the per-million table. Unknown models
// cost nothing.
func ComputeCost(model string, inputTokens, outputTokens int, pricing map[string]config.PricingEntry) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)*p.InputPerMillion + float64(outputTokens)*p.OutputPerMillion) / 1e6
}

// Recorder prices and records model calls. A nil *Recorder discards
// everything, so callers need not check whether usage is enabled.
type Recorder struct {
	store   *Store
	pricing map[string]config.PricingEntry
}

// NewRecorder wraps store with a pricing table.
func NewRecorder(store *Store, pricing map[string]config.PricingEntry) *Recorder {
	return &Recorder{store: store, pricing: pricing}
}

// Observe records one call made on behalf of runID.
func (r *Recorder) Observe(ctx context.Context, runID int64, role, provider, model string, input, output int) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Record(ctx, Record{
		RunID:        runID,
		Model:        model,
		Provider:     provider,
		InputTokens:  input,
		OutputTokens: output,
		CostUSD:      ComputeCost(model, input, output, r.pricing),
		Role:         role,
	})
}
