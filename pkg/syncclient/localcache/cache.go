// Package localcache persists planning payloads on the device so a
// screen can render while the backend is unreachable. Entries expire
// 24 hours after they were written and are purged lazily on read.
package localcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultTTL is how long a cached payload stays servable.
const DefaultTTL = 24 * time.Hour

// ErrMiss is returned when no fresh entry exists for a key.
var ErrMiss = errors.New("localcache: miss")

const schema = `
CREATE TABLE IF NOT EXISTS planning_cache (
	cache_key  TEXT PRIMARY KEY,
	school_id  TEXT NOT NULL,
	payload    BLOB NOT NULL,
	written_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_planning_cache_school ON planning_cache (school_id);
`

// Key addresses one cached payload. Keys carry the school id so that
// profiles never read each other's data.
type Key struct {
	SchoolID string
	Endpoint string
	Week     int
	Year     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d|%d", k.SchoolID, k.Endpoint, k.Year, k.Week)
}

// Store is a SQLite-backed cache. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the default expiry window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// Open creates or opens the cache database at path. Use ":memory:" for
// an in-memory store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	s := &Store{db: db, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the payload stored under key, or ErrMiss when the entry
// is absent or expired. Expired rows are deleted before returning.
func (s *Store) Get(ctx context.Context, key Key) ([]byte, error) {
	var payload []byte
	var writtenAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, written_at FROM planning_cache WHERE cache_key = ?`,
		key.String(),
	).Scan(&payload, &writtenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	if s.now().Sub(time.Unix(writtenAt, 0)) >= s.ttl {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM planning_cache WHERE cache_key = ?`, key.String()); err != nil {
			return nil, fmt.Errorf("delete expired entry: %w", err)
		}
		return nil, ErrMiss
	}
	return payload, nil
}

// Put stores payload under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key Key, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO planning_cache (cache_key, school_id, payload, written_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET payload = excluded.payload, written_at = excluded.written_at`,
		key.String(), key.SchoolID, payload, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// SweepExpired removes every expired row and reports how many were deleted.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM planning_cache WHERE written_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearSchool drops every entry belonging to one school. Called when a
// profile is removed from the device.
func (s *Store) ClearSchool(ctx context.Context, schoolID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM planning_cache WHERE school_id = ?`, schoolID); err != nil {
		return fmt.Errorf("clear school cache: %w", err)
	}
	return nil
}

// Clear drops the whole cache.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM planning_cache`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
