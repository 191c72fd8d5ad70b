package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record names are stable; renaming one orphans stored data.
const (
	RecordFavorites      = "@prismwalls_favorites"
	RecordPreferences    = "prismwalls-settings"
	RecordRecentSearches = "@prismwalls_recent_searches"
)

// ErrNotFound is returned by LoadRecord for a name that was never saved.
var ErrNotFound = errors.New("record not found")

// Repository is a SQLite store of named JSON records. Each save replaces the
// whole record in one statement, so readers never see a partial write.
type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Background writers and the UI share one connection; SQLite serializes
	// writers anyway.
	db.SetMaxOpenConns(1)
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS records (
  name TEXT PRIMARY KEY,
  payload BLOB NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CheckWritable fails fast when the database file is read-only.
func (r *Repository) CheckWritable(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS write_check (x INTEGER)`); err != nil {
		return fmt.Errorf("temp write: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE name = ''`); err != nil {
		return fmt.Errorf("database is not writable: %w", err)
	}
	return nil
}

func (r *Repository) SaveRecord(ctx context.Context, name string, payload []byte) error {
	if name == "" {
		return errors.New("record name is required")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO records (name, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  payload=excluded.payload,
  updated_at=excluded.updated_at
`, name, payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save record %s: %w", name, err)
	}
	return nil
}

func (r *Repository) LoadRecord(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", name, err)
	}
	return payload, nil
}

func (r *Repository) DeleteRecord(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete record %s: %w", name, err)
	}
	return nil
}

// RecordNames lists stored records, most recently written first.
func (r *Repository) RecordNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM records ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return names, nil
}

// recordAliases maps the names accepted on the command line to records.
var recordAliases = map[string]string{
	"favorites":   RecordFavorites,
	"preferences": RecordPreferences,
	"settings":    RecordPreferences,
	"recent":      RecordRecentSearches,
}

// Reset deletes the named records, or every stored record when names is
// empty, and returns what was removed. Names may be aliases such as
// "favorites" or full record names.
func (r *Repository) Reset(ctx context.Context, names ...string) ([]string, error) {
	stored, err := r.RecordNames(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(stored))
	for _, name := range stored {
		present[name] = true
	}

	targets := stored
	if len(names) > 0 {
		targets = targets[:0:0]
		for _, name := range names {
			if full, ok := recordAliases[name]; ok {
				name = full
			}
			if !present[name] {
				continue
			}
			present[name] = false
			targets = append(targets, name)
		}
	}

	removed := make([]string, 0, len(targets))
	for _, name := range targets {
		if err := r.DeleteRecord(ctx, name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}
