// Package prefs persists operator preferences, currently the per-deck
// "don't show this tutorial again" flag.
package prefs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides access to the preferences SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "capture-3d", "prefs.sqlite")
}

// Open opens (creating if needed) the preferences database with WAL.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure prefs directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tutorial_skips (
			name      TEXT PRIMARY KEY,
			skip      INTEGER NOT NULL DEFAULT 0,
			updatedAt REAL NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Skip reports whether the named tutorial deck is marked "don't show again".
// An unknown deck defaults to false.
func (s *Store) Skip(name string) (bool, error) {
	row := s.db.QueryRow(`
		SELECT skip FROM tutorial_skips WHERE name = ?
	`, name)

	var skip int
	if err := row.Scan(&skip); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("scan skip flag: %w", err)
	}
	return skip != 0, nil
}

// SetSkip records the "don't show again" choice for a deck.
func (s *Store) SetSkip(name string, skip bool) error {
	v := 0
	if skip {
		v = 1
	}
	if _, err := s.db.Exec(`
		INSERT INTO tutorial_skips (name, skip, updatedAt)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET skip = excluded.skip, updatedAt = excluded.updatedAt
	`, name, v, float64(time.Now().UnixMilli())/1000.0); err != nil {
		return fmt.Errorf("set skip flag: %w", err)
	}
	return nil
}
