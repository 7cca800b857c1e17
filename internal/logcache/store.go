// Package logcache keeps downloaded workflow run log archives so repeated
// analyses of the same repository do not download them again.
package logcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DBFileName is the cache database file inside the state directory.
const DBFileName = "cache.db"

// Store persists raw run log archives in SQLite. Entries older than the
// TTL are treated as missing.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenStore opens (creating if needed) the cache database at path and
// applies pending migrations. A ttl of zero keeps entries forever.
func OpenStore(ctx context.Context, path string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run cache migrations: %w", err)
	}

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) cutoff() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(-s.ttl).Unix()
}

// Get returns the archive cached for a run.
func (s *Store) Get(ctx context.Context, repo string, runID int64) ([]byte, bool, error) {
	var archive []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT archive FROM run_logs
		WHERE repo = ? AND run_id = ? AND fetched_at >= ?
	`, repo, runID, s.cutoff()).Scan(&archive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached logs for run %d: %w", runID, err)
	}
	return archive, true, nil
}

// Put stores or replaces the archive for a run.
func (s *Store) Put(ctx context.Context, repo string, runID int64, archive []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_logs (repo, run_id, archive, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (repo, run_id) DO UPDATE SET
			archive = excluded.archive,
			fetched_at = excluded.fetched_at
	`, repo, runID, archive, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to cache logs for run %d: %w", runID, err)
	}
	return nil
}

// Delete removes the entry for a run. Removing a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, repo string, runID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM run_logs WHERE repo = ? AND run_id = ?", repo, runID); err != nil {
		return fmt.Errorf("failed to delete cached logs for run %d: %w", runID, err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM run_logs WHERE fetched_at < ?", s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to prune log cache: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM run_logs")
	if err != nil {
		return 0, fmt.Errorf("failed to clear log cache: %w", err)
	}
	return res.RowsAffected()
}

// Stats summarises the stored entries.
type Stats struct {
	Entries int64
	Bytes   int64
}

// Stats returns the number and total size of stored archives, expired ones included.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(archive)), 0) FROM run_logs",
	).Scan(&st.Entries, &st.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read log cache stats: %w", err)
	}
	return st, nil
}
