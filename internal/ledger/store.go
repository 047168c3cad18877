// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists the cost ledger and analytics records in a local
// SQLite database. Persistence is best-effort: the in-memory services remain
// authoritative within a process and callers treat ledger errors as warnings.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the coinbrief SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and creates the schema if
// it does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cost_entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			day TEXT NOT NULL,
			ts TEXT NOT NULL,
			operation TEXT NOT NULL,
			queries INTEGER NOT NULL,
			cost REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cost_entries_day ON cost_entries(day)`,
		`CREATE TABLE IF NOT EXISTS search_metrics (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			query TEXT NOT NULL,
			success INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			cost REAL NOT NULL,
			cached INTEGER NOT NULL,
			relevance REAL NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_metrics_ts ON search_metrics(ts)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CostRow is one persisted cost ledger line.
type CostRow struct {
	Day       string
	Timestamp time.Time
	Operation string
	Queries   int
	Cost      float64
}

// RecordCost appends a cost entry.
func (s *Store) RecordCost(ctx context.Context, row CostRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_entries (day, ts, operation, queries, cost) VALUES (?, ?, ?, ?, ?)`,
		row.Day, row.Timestamp.UTC().Format(time.RFC3339Nano), row.Operation, row.Queries, row.Cost,
	)
	if err != nil {
		return fmt.Errorf("inserting cost entry: %w", err)
	}
	return nil
}

// CostsSince returns all cost entries recorded on or after the given UTC day
// key (YYYY-MM-DD), oldest first.
func (s *Store) CostsSince(ctx context.Context, day string) ([]CostRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, ts, operation, queries, cost FROM cost_entries WHERE day >= ? ORDER BY ts`, day)
	if err != nil {
		return nil, fmt.Errorf("querying cost entries: %w", err)
	}
	defer rows.Close()

	var out []CostRow
	for rows.Next() {
		var r CostRow
		var ts string
		if err := rows.Scan(&r.Day, &ts, &r.Operation, &r.Queries, &r.Cost); err != nil {
			return nil, fmt.Errorf("scanning cost entry: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
			r.Timestamp = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneCosts removes cost entries older than the given UTC day key.
func (s *Store) PruneCosts(ctx context.Context, day string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cost_entries WHERE day < ?`, day); err != nil {
		return fmt.Errorf("pruning cost entries: %w", err)
	}
	return nil
}

// MetricRow is one persisted search outcome record.
type MetricRow struct {
	Timestamp time.Time
	Query     string
	Success   bool
	Duration  time.Duration
	Cost      float64
	Cached    bool
	Relevance float64
	Error     string
}

// RecordMetric appends a search metric record.
func (s *Store) RecordMetric(ctx context.Context, row MetricRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_metrics (ts, query, success, duration_ms, cost, cached, relevance, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Timestamp.UTC().Format(time.RFC3339Nano), row.Query, boolInt(row.Success),
		row.Duration.Milliseconds(), row.Cost, boolInt(row.Cached), row.Relevance, row.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting search metric: %w", err)
	}
	return nil
}

// MetricsSince returns all metric records at or after the given time, oldest first.
func (s *Store) MetricsSince(ctx context.Context, since time.Time) ([]MetricRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, query, success, duration_ms, cost, cached, relevance, error
		 FROM search_metrics WHERE ts >= ? ORDER BY ts`,
		since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("querying search metrics: %w", err)
	}
	defer rows.Close()

	var out []MetricRow
	for rows.Next() {
		var r MetricRow
		var ts string
		var success, cached int
		var durationMS int64
		if err := rows.Scan(&ts, &r.Query, &success, &durationMS, &r.Cost, &cached, &r.Relevance, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning search metric: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
			r.Timestamp = t
		}
		r.Success = success != 0
		r.Cached = cached != 0
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneMetrics removes metric records older than the given time.
func (s *Store) PruneMetrics(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_metrics WHERE ts < ?`,
		before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("pruning search metrics: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
