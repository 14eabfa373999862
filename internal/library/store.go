// Package library is the SQLite-backed publication library. It persists
// publications with their enrichment, the failed request log and settings.
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrPublicationNotFound is returned when a publication ID is not in the library.
var ErrPublicationNotFound = errors.New("publication not found")

const schema = `
CREATE TABLE IF NOT EXISTS publications (
	id TEXT PRIMARY KEY NOT NULL,
	identifiers TEXT NOT NULL,
	enrichment TEXT,
	enriched_at INTEGER,
	added_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_publications_enriched_at ON publications(enriched_at);

CREATE TABLE IF NOT EXISTS failed_requests (
	publication_id TEXT PRIMARY KEY NOT NULL,
	identifiers TEXT NOT NULL,
	last_error TEXT NOT NULL,
	retry_count INTEGER NOT NULL,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY NOT NULL,
	value BLOB NOT NULL
);
`

// Store implements the persistence interfaces of the service, scheduler,
// tracker and settings packages on one SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens the library database at dbPath and creates its tables.
func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create tables: %w", err), closeErr)
	}

	s := &Store{db: db, dbPath: dbPath, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the database file the store was opened from.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func unixOrNull(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}

func fromUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
