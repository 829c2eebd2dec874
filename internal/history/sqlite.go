// Package history persists completed scan summaries in SQLite so past
// lookups can be listed and re-inspected. Feature records are never stored,
// only the ranked outcome of each scan.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/p-hannemann/skin-lookup/internal/match"
	"github.com/p-hannemann/skin-lookup/internal/scan"
)

// Entry is one recorded scan.
type Entry struct {
	ID        string         `json:"id"`
	Algorithm string         `json:"algorithm"`
	Query     string         `json:"query"`
	Root      string         `json:"root"`
	StartedAt time.Time      `json:"started_at"`
	ElapsedMS int64          `json:"elapsed_ms"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Total     int            `json:"total"`
	Cancelled bool           `json:"cancelled"`
	Matches   []match.Result `json:"matches"`
}

// FromSummary builds an entry out of a finished scan.
func FromSummary(id string, startedAt time.Time, s *scan.Summary) *Entry {
	return &Entry{
		ID:        id,
		Algorithm: s.Algorithm,
		Query:     s.Query,
		Root:      s.Root,
		StartedAt: startedAt,
		ElapsedMS: s.ElapsedMS,
		Processed: s.Processed,
		Skipped:   s.Skipped,
		Total:     s.Total,
		Cancelled: s.Cancelled,
		Matches:   s.Matches,
	}
}

// Store is a SQLite-backed scan history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		algorithm TEXT NOT NULL,
		query_path TEXT NOT NULL,
		root TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		total INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		matches TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_started_at ON scans(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Save inserts a scan entry.
func (s *Store) Save(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry has no id")
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	matchesJSON, err := json.Marshal(e.Matches)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans (id, algorithm, query_path, root, started_at, elapsed_ms, processed, skipped, total, cancelled, matches)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Algorithm, e.Query, e.Root, e.StartedAt, e.ElapsedMS,
		e.Processed, e.Skipped, e.Total, e.Cancelled, string(matchesJSON),
	)
	return err
}

// Get returns a scan entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, algorithm, query_path, root, started_at, elapsed_ms, processed, skipped, total, cancelled, matches
		 FROM scans WHERE id = ?`, id,
	)
	e, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan not found: %s", id)
	}
	return e, err
}

// List returns the most recent scans, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, algorithm, query_path, root, started_at, elapsed_ms, processed, skipped, total, cancelled, matches
		 FROM scans ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(scanRow func(dest ...any) error) (*Entry, error) {
	var e Entry
	var matchesJSON string
	err := scanRow(&e.ID, &e.Algorithm, &e.Query, &e.Root, &e.StartedAt, &e.ElapsedMS,
		&e.Processed, &e.Skipped, &e.Total, &e.Cancelled, &matchesJSON)
	if err != nil {
		return nil, err
	}
	if matchesJSON != "" {
		if err := json.Unmarshal([]byte(matchesJSON), &e.Matches); err != nil {
			return nil, fmt.Errorf("failed to unmarshal matches: %w", err)
		}
	}
	return &e, nil
}

// Count returns the total number of recorded scans.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&count)
	return count, err
}

// DiskUsageBytes returns the size of the database file and its WAL sidecars.
// Missing files contribute 0.
func (s *Store) DiskUsageBytes() (int64, error) {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
