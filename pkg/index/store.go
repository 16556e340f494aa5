// Package index remembers SHA-256 digests of stored files in SQLite so repeated
// file info requests do not rehash unchanged content.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is the recorded digest of one file. Size and ModTime identify the
// version of the file the digest belongs to.
type Entry struct {
	Path       string
	Size       int64
	ModTime    time.Time
	SHA256     string
	RecordedAt time.Time
}

// Matches reports whether e still describes a file with the given size and mtime.
func (e *Entry) Matches(size int64, modTime time.Time) bool {
	return e.Size == size && e.ModTime.Equal(modTime)
}

// Store manages checksum entries in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens the index database at dbPath and creates the schema.
func NewStore(dbPath string) (*Store, error) {
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrency
	if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrDatabaseError, err)
	}

	if _, err := database.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to set busy timeout: %w", ErrDatabaseError, err)
	}

	store := &Store{db: database}
	if err := store.Initialize(); err != nil {
		_ = database.Close()
		return nil, err
	}

	return store, nil
}

// Initialize creates the database schema.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(context.Background(), Schema)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func validateEntry(entry Entry) error {
	if entry.Path == "" || len(entry.SHA256) != checksumLength {
		return ErrInvalidEntry
	}
	return nil
}

// Put records or replaces the digest for entry.Path.
func (s *Store) Put(entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO checksums (path, size, mod_time, sha256, recorded_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   size = excluded.size,
		   mod_time = excluded.mod_time,
		   sha256 = excluded.sha256,
		   recorded_at = excluded.recorded_at`,
		entry.Path, entry.Size, entry.ModTime.UnixNano(), strings.ToLower(entry.SHA256), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// Lookup returns the entry recorded for path.
func (s *Store) Lookup(path string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		entry   Entry
		modTime int64
	)
	err := s.db.QueryRowContext(context.Background(),
		`SELECT path, size, mod_time, sha256, recorded_at FROM checksums WHERE path = ?`, path,
	).Scan(&entry.Path, &entry.Size, &modTime, &entry.SHA256, &entry.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	entry.ModTime = time.Unix(0, modTime)
	return &entry, nil
}

// DeletePrefix removes the entry for path and every entry below it.
func (s *Store) DeletePrefix(path string) error {
	if path == "" {
		return ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(context.Background(),
		`DELETE FROM checksums WHERE path = ? OR path LIKE ? ESCAPE '\'`,
		path, escapeLike(path)+"/%",
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// Count returns the number of recorded entries.
func (s *Store) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM checksums`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return count, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
