package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS results (
	id          TEXT PRIMARY KEY,
	preset      TEXT NOT NULL,
	backend     TEXT NOT NULL,
	model_id    TEXT NOT NULL,
	prompt      TEXT NOT NULL,
	text        TEXT NOT NULL,
	complete    INTEGER NOT NULL,
	retried     INTEGER NOT NULL,
	missing     TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS results_started_at ON results(started_at);`

// startedAtLayout is fixed-width so started_at sorts lexically.
const startedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteSink keeps a local ledger of results in a `results` table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema exists.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createResultsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) Save(ctx context.Context, rec Record) error {
	missing, err := json.Marshal(rec.Missing)
	if err != nil {
		return err
	}
	if rec.Missing == nil {
		missing = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO results
			(id, preset, backend, model_id, prompt, text, complete, retried, missing, attempts, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Preset, rec.Backend, rec.ModelID, rec.Prompt, rec.Text,
		rec.Complete, rec.Retried, string(missing), rec.Attempts,
		rec.StartedAt.UTC().Format(startedAtLayout), rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (s *SQLiteSink) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, preset, backend, model_id, prompt, text, complete, retried, missing, attempts, started_at, duration_ms
		 FROM results ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			missing   string
			startedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Preset, &rec.Backend, &rec.ModelID, &rec.Prompt, &rec.Text,
			&rec.Complete, &rec.Retried, &missing, &rec.Attempts, &startedAt, &rec.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(missing), &rec.Missing); err != nil {
			return nil, fmt.Errorf("failed to decode missing sections for %s: %w", rec.ID, err)
		}
		if len(rec.Missing) == 0 {
			rec.Missing = nil
		}
		if rec.StartedAt, err = time.Parse(startedAtLayout, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at for %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
