package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"eventrecon/core"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS high_level_events (
	run_id          TEXT    NOT NULL,
	seq             INTEGER NOT NULL,
	id              INTEGER NOT NULL,
	date_time_min   TEXT    NOT NULL,
	date_time_max   TEXT    NOT NULL,
	evidence_source TEXT    NOT NULL,
	type            TEXT    NOT NULL,
	description     TEXT    NOT NULL,
	category        TEXT    NOT NULL,
	plugin          TEXT    NOT NULL,
	files           TEXT    NOT NULL,
	keys            TEXT    NOT NULL,
	reasoning       TEXT,
	supporting      TEXT    NOT NULL,
	merged_id       TEXT    NOT NULL,
	run_started_at  TEXT    NOT NULL,
	PRIMARY KEY (run_id, seq)
)`

const insertEvent = `
INSERT INTO high_level_events (
	run_id, seq, id, date_time_min, date_time_max, evidence_source, type, description,
	category, plugin, files, keys, reasoning, supporting, merged_id, run_started_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteWriter appends the timeline of a run to a SQLite database. Each event
// is one row; nested fields are stored as JSON text. seq preserves the
// timeline order within a run.
type SQLiteWriter struct {
	path   string
	logger *zap.SugaredLogger
}

// NewSQLiteWriter creates a writer for the database at path
func NewSQLiteWriter(path string, logger *zap.SugaredLogger) *SQLiteWriter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteWriter{path: path, logger: logger}
}

// Format returns FormatSQLite
func (w *SQLiteWriter) Format() string {
	return FormatSQLite
}

// Write inserts all events in a single transaction.
func (w *SQLiteWriter) Write(ctx context.Context, run RunInfo, events []*core.HighLevelEvent) error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	db, err := OpenSQLite(ctx, w.path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	started := run.StartedAt.UTC().Format(time.RFC3339Nano)
	for seq, ev := range events {
		cols, err := encodeEventColumns(ev)
		if err != nil {
			return fmt.Errorf("event %d: %w", ev.ID, err)
		}
		args := append([]any{run.ID, seq, ev.ID, ev.TimeMin, ev.TimeMax, ev.EvidenceSource,
			ev.Type, ev.Description, ev.Category, ev.Plugin}, cols...)
		args = append(args, started)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert event %d: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit timeline: %w", err)
	}
	recordWrite(w.logger, FormatSQLite, w.path, run, len(events))
	return nil
}

// OpenSQLite opens the database at path and ensures the events table exists.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection keeps the pragmas in effect for every statement
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout=5000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, createEventsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}
	return db, nil
}

// encodeEventColumns renders the nested fields as JSON text in column order:
// files, keys, reasoning, supporting, merged_id.
func encodeEventColumns(ev *core.HighLevelEvent) ([]any, error) {
	files, err := jsonText(nonNil(ev.Files))
	if err != nil {
		return nil, err
	}
	keys, err := jsonText(nonNilMap(ev.Keys))
	if err != nil {
		return nil, err
	}
	var reasoning any
	if ev.Reasoning != nil {
		r, err := jsonText(ev.Reasoning)
		if err != nil {
			return nil, err
		}
		reasoning = r
	}
	supporting, err := jsonText(nonNilMap(ev.Supporting))
	if err != nil {
		return nil, err
	}
	merged, err := jsonText(nonNil(ev.MergedIDs))
	if err != nil {
		return nil, err
	}
	return []any{files, keys, reasoning, supporting, merged}, nil
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(b), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}
