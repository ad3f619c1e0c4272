// Package cache persists archived-block query results between runs so
// repeated queries for the same block skip the network. Entries carry a
// fetch timestamp and a TTL; a stale entry is indistinguishable from an
// absent one. A corrupted cache degrades to misses, never to a failure.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/radiolurker/crier/internal/bcfy"
)

// Fingerprint identifies one cached archived-block query.
type Fingerprint struct {
	System     int
	Talkgroup  int
	BlockStart int64
}

// Store is a sqlite-backed cache of archived call blocks. Safe for use
// from multiple goroutines; database/sql serializes access.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// block_start is the locally floored key; resolved_start and block_end
// carry the boundaries the server confirmed, so a hit reproduces the
// exact bounds the original fetch returned.
const schema = `
CREATE TABLE IF NOT EXISTS archive_blocks (
	system         INTEGER NOT NULL,
	talkgroup      INTEGER NOT NULL,
	block_start    INTEGER NOT NULL,
	fetched_at     INTEGER NOT NULL,
	ttl_seconds    INTEGER NOT NULL,
	resolved_start INTEGER NOT NULL,
	block_end      INTEGER NOT NULL,
	payload        TEXT    NOT NULL,
	PRIMARY KEY (system, talkgroup, block_start)
);
CREATE TABLE IF NOT EXISTS directory_entries (
	kind        TEXT    NOT NULL,
	key         TEXT    NOT NULL,
	fetched_at  INTEGER NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	payload     TEXT    NOT NULL,
	PRIMARY KEY (kind, key)
);`

// Open creates or opens the cache database at path, creating parent
// directories as needed. An unreadable or corrupt database file is
// discarded and recreated empty.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := open(path)
	if err != nil {
		// Fail closed on corruption: a cache that cannot be read is an
		// empty cache, not a fatal condition.
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("reset corrupt cache: %w", rmErr)
		}
		db, err = open(path)
		if err != nil {
			return nil, fmt.Errorf("reopen cache: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SetClock overrides the store's time source. Tests use this to step
// entries across their ttl.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Get returns the cached block for fp when present and not expired,
// along with the boundaries recorded at fetch time. A TTL of zero or
// less means the entry never expires. Expired or undecodable rows are
// lazily evicted and reported as misses.
func (s *Store) Get(fp Fingerprint) (calls []bcfy.Call, blockStart, blockEnd int64, ok bool) {
	row := s.db.QueryRow(
		`SELECT fetched_at, ttl_seconds, resolved_start, block_end, payload FROM archive_blocks
		 WHERE system = ? AND talkgroup = ? AND block_start = ?`,
		fp.System, fp.Talkgroup, fp.BlockStart)

	var fetchedAt, ttlSeconds, start, end int64
	var payload []byte
	if err := row.Scan(&fetchedAt, &ttlSeconds, &start, &end, &payload); err != nil {
		return nil, 0, 0, false
	}
	if ttlSeconds > 0 && s.now().Unix()-fetchedAt >= ttlSeconds {
		_ = s.Invalidate(fp)
		return nil, 0, 0, false
	}
	if err := json.Unmarshal(payload, &calls); err != nil {
		_ = s.Invalidate(fp)
		return nil, 0, 0, false
	}
	return calls, start, end, true
}

// Put stores or replaces the entry for fp, stamped with the current
// time. blockStart and blockEnd are the resolved boundaries to replay
// on a hit. ttl of zero or less marks the entry as never expiring.
func (s *Store) Put(fp Fingerprint, calls []bcfy.Call, blockStart, blockEnd int64, ttl time.Duration) error {
	payload, err := json.Marshal(calls)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	ttlSeconds := int64(ttl / time.Second)
	if ttl <= 0 {
		ttlSeconds = 0
	}
	_, err = s.db.Exec(
		`INSERT INTO archive_blocks (system, talkgroup, block_start, fetched_at, ttl_seconds, resolved_start, block_end, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (system, talkgroup, block_start) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			ttl_seconds = excluded.ttl_seconds,
			resolved_start = excluded.resolved_start,
			block_end = excluded.block_end,
			payload = excluded.payload`,
		fp.System, fp.Talkgroup, fp.BlockStart, s.now().Unix(), ttlSeconds, blockStart, blockEnd, payload)
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// GetEntry returns the cached directory payload stored under
// (kind, key) when present and not expired. Expired rows are lazily
// evicted. The payload is whatever the caller stored, usually JSON.
func (s *Store) GetEntry(kind, key string) ([]byte, bool) {
	row := s.db.QueryRow(
		`SELECT fetched_at, ttl_seconds, payload FROM directory_entries
		 WHERE kind = ? AND key = ?`, kind, key)

	var fetchedAt, ttlSeconds int64
	var payload []byte
	if err := row.Scan(&fetchedAt, &ttlSeconds, &payload); err != nil {
		return nil, false
	}
	if ttlSeconds > 0 && s.now().Unix()-fetchedAt >= ttlSeconds {
		_, _ = s.db.Exec(`DELETE FROM directory_entries WHERE kind = ? AND key = ?`, kind, key)
		return nil, false
	}
	return payload, true
}

// PutEntry stores or replaces the directory payload under (kind, key).
// ttl of zero or less marks the entry as never expiring.
func (s *Store) PutEntry(kind, key string, payload []byte, ttl time.Duration) error {
	ttlSeconds := int64(ttl / time.Second)
	if ttl <= 0 {
		ttlSeconds = 0
	}
	_, err := s.db.Exec(
		`INSERT INTO directory_entries (kind, key, fetched_at, ttl_seconds, payload)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (kind, key) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			ttl_seconds = excluded.ttl_seconds,
			payload = excluded.payload`,
		kind, key, s.now().Unix(), ttlSeconds, payload)
	if err != nil {
		return fmt.Errorf("store directory entry: %w", err)
	}
	return nil
}

// Invalidate removes the entry for fp if present.
func (s *Store) Invalidate(fp Fingerprint) error {
	_, err := s.db.Exec(
		`DELETE FROM archive_blocks WHERE system = ? AND talkgroup = ? AND block_start = ?`,
		fp.System, fp.Talkgroup, fp.BlockStart)
	if err != nil {
		return fmt.Errorf("invalidate cache entry: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
