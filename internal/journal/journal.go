// Package journal records the outcome of fetch-and-resend jobs. It keeps
// results only, never fetch progress; a restarted process starts clean.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one completed (or failed) job.
type Entry struct {
	ID        string
	Kind      string // "single" or "batch"
	Chat      string // chat id or handle as given in the link
	Low       int    // window bounds; Low == High for single fetches
	High      int
	Delivered int
	Total     int
	Status    string // "ok", "partial" or "failed"
	Detail    string // failure detail, empty on success
	CreatedAt time.Time
}

// Job statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// SQLiteStore persists journal entries in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the journal database and runs
// migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			chat       TEXT NOT NULL,
			low        INTEGER NOT NULL,
			high       INTEGER NOT NULL,
			delivered  INTEGER NOT NULL DEFAULT 0,
			total      INTEGER NOT NULL DEFAULT 0,
			status     TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
	`)
	if err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Append stores a finished job. A missing id or timestamp is filled in.
func (s *SQLiteStore) Append(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO jobs (id, kind, chat, low, high, delivered, total, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Kind, e.Chat, e.Low, e.High, e.Delivered, e.Total, e.Status, e.Detail,
		e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first. limit <= 0 means all.
func (s *SQLiteStore) Recent(limit int) ([]Entry, error) {
	q := `SELECT id, kind, chat, low, high, delivered, total, status, detail, created_at
		FROM jobs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Chat, &e.Low, &e.High,
			&e.Delivered, &e.Total, &e.Status, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than cutoff and reports how many were
// removed.
func (s *SQLiteStore) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM jobs WHERE created_at < ?`, cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
