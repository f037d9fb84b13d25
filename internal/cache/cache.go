// Package cache stores LLM responses keyed by normalized request identity.
//
// DESIGN: Entries live in SQLite with a fixed expiry stamped at write time,
// so a TTL change in configuration never shortens or extends existing
// entries. Expiry is checked against the wall clock on every read; a row
// past its expiry is a miss even if a sweep has not reclaimed it yet. Any
// storage failure degrades to a miss (fail-open): a broken cache must never
// break the call path, it only costs money.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // register sqlite driver
)

const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS response_cache (
	key TEXT PRIMARY KEY,
	response_payload TEXT NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0,
	cost_saved REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache(expires_at);
`

// Key derives the deterministic cache key for a request. The scope keeps
// responses from leaking between agent roles that normalize to the same
// prompt text.
func Key(model, scope, normalizedPrompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(normalizedPrompt))
	return hex.EncodeToString(h.Sum(nil))
}

// Stats summarizes cache effectiveness for this process.
type Stats struct {
	HitRate        float64 // hits / lookups for this process lifetime
	Lookups        int64
	Hits           int64
	EntryCount     int
	OldestEntryAge time.Duration
	TotalSavedUSD  float64 // cost_saved * hit_count over live entries
}

// Store is a SQLite-backed TTL response cache.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time

	lookups atomic.Int64
	hits    atomic.Int64
}

// Open opens or creates the cache database at the given path. The TTL
// applies to entries written from now on; existing rows keep the expiry
// they were stamped with.
func Open(dbPath string, ttl time.Duration) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the cache database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached response for a key. A hit increments the entry's
// hit counter in SQL (atomic per key) without extending its expiry. Expired
// rows and storage failures are both misses.
func (s *Store) Get(key string) (response string, ok bool) {
	s.lookups.Add(1)

	var payload, expiresAt string
	err := s.db.QueryRow(
		"SELECT response_payload, expires_at FROM response_cache WHERE key = ?", key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Msg("cache: read failed, treating as miss")
		return "", false
	}

	expiry, err := time.Parse(timeFormat, expiresAt)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache: corrupt expiry, treating as miss")
		return "", false
	}
	if !s.now().Before(expiry) {
		return "", false
	}

	if _, err := s.db.Exec(
		"UPDATE response_cache SET hit_count = hit_count + 1 WHERE key = ?", key,
	); err != nil {
		// Hit counting is stats-only; the hit itself still stands.
		log.Warn().Err(err).Msg("cache: hit counter update failed")
	}

	s.hits.Add(1)
	return payload, true
}

// Put stores or overwrites a response. costSaved is the metered cost of the
// call that produced it, reported by Stats as savings on later hits.
// Storage failures are logged and swallowed; the caller already has its
// response.
func (s *Store) Put(key, response string, costSaved float64) {
	now := s.now()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO response_cache
		(key, response_payload, created_at, expires_at, hit_count, cost_saved)
		VALUES (?, ?, ?, ?, 0, ?)`,
		key, response,
		now.UTC().Format(timeFormat),
		now.Add(s.ttl).UTC().Format(timeFormat),
		costSaved,
	)
	if err != nil {
		log.Warn().Err(err).Msg("cache: write failed, response not cached")
	}
}

// Stats returns cache effectiveness numbers. Entry counts only include rows
// that are still live; expired rows awaiting a sweep are excluded.
func (s *Store) Stats() Stats {
	st := Stats{
		Lookups: s.lookups.Load(),
		Hits:    s.hits.Load(),
	}
	if st.Lookups > 0 {
		st.HitRate = float64(st.Hits) / float64(st.Lookups)
	}

	nowStr := s.now().UTC().Format(timeFormat)

	var oldest sql.NullString
	var saved sql.NullFloat64
	err := s.db.QueryRow(`SELECT COUNT(*), MIN(created_at), SUM(cost_saved * hit_count)
		FROM response_cache WHERE expires_at > ?`, nowStr,
	).Scan(&st.EntryCount, &oldest, &saved)
	if err != nil {
		log.Warn().Err(err).Msg("cache: stats query failed")
		return st
	}
	st.TotalSavedUSD = saved.Float64

	if oldest.Valid {
		if created, err := time.Parse(timeFormat, oldest.String); err == nil {
			st.OldestEntryAge = s.now().Sub(created)
		}
	}
	return st
}

// Sweep deletes expired rows and returns how many were removed. Reads never
// depend on the sweep; it only reclaims storage.
func (s *Store) Sweep() (int, error) {
	res, err := s.db.Exec(
		"DELETE FROM response_cache WHERE expires_at <= ?",
		s.now().UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("sweeping cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// StartSweeper runs Sweep on the given interval until stop is closed.
// Optional; a zero interval disables it.
func (s *Store) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := s.Sweep(); err != nil {
					log.Warn().Err(err).Msg("cache: sweep failed")
				} else if n > 0 {
					log.Debug().Int("removed", n).Msg("cache: swept expired entries")
				}
			case <-stop:
				return
			}
		}
	}()
}
