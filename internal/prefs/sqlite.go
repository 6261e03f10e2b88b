// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/cad-export/pkg/types"
)

// SQLiteStore is a Store persisted in a SQLite database. Every write also
// appends to a history table so a journal of applied settings survives
// across runs.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path and its schema.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating preference db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening preference db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS preferences (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			kind TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE TABLE IF NOT EXISTS preference_history (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			kind TEXT NOT NULL,
			value TEXT NOT NULL,
			written_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) (types.PrefValue, bool, error) {
	var kind, raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, value FROM preferences WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&kind, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.PrefValue{}, false, nil
	}
	if err != nil {
		return types.PrefValue{}, false, fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	v, err := types.ParsePrefValue(types.PrefKind(kind), raw)
	if err != nil {
		return types.PrefValue{}, false, fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	return v, true, nil
}

// Set overwrites the current value and records the write in the history.
func (s *SQLiteStore) Set(ctx context.Context, namespace, key string, v types.PrefValue) error {
	ts := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO preferences (namespace, key, kind, value, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET
			kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, string(v.Kind), v.String(), ts,
	); err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO preference_history (namespace, key, kind, value, written_at) VALUES (?, ?, ?, ?, ?)`,
		namespace, key, string(v.Kind), v.String(), ts,
	); err != nil {
		return fmt.Errorf("journaling %s/%s: %w", namespace, key, err)
	}
	return tx.Commit()
}

// All returns every current preference sorted by namespace then key.
func (s *SQLiteStore) All(ctx context.Context) ([]types.Preference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace, key, kind, value FROM preferences ORDER BY namespace, key`)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	defer rows.Close()

	var out []types.Preference
	for rows.Next() {
		var ns, key, kind, raw string
		if err := rows.Scan(&ns, &key, &kind, &raw); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		v, err := types.ParsePrefValue(types.PrefKind(kind), raw)
		if err != nil {
			return nil, fmt.Errorf("preference %s/%s: %w", ns, key, err)
		}
		out = append(out, types.Preference{Namespace: ns, Key: key, Value: v})
	}
	return out, rows.Err()
}

// HistoryLen returns the number of journaled writes.
func (s *SQLiteStore) HistoryLen(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM preference_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}
