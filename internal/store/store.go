// Package store persists the canonical activity catalog in SQLite: the
// catalog entries themselves, the per-area sequence counters used to mint
// new codes, and the vector index used by semantic search.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"mapagov/internal/catalog"
	"mapagov/internal/logging"
)

// ErrDuplicateCode indicates the unique index on catalog_entries.code was
// violated. This is a broken sequence-counter invariant, fatal and
// non-retryable; it must never be papered over with a fresh code.
var ErrDuplicateCode = errors.New("duplicate catalog code")

// ErrDuplicateActivity indicates the (macroprocess, process, subprocess,
// activity) tuple already exists.
var ErrDuplicateActivity = errors.New("duplicate catalog activity")

// CatalogStore is the SQLite-backed catalog.
type CatalogStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	vectorExt bool
}

// Open initializes the catalog database at the given path, creating the
// directory and running schema migrations as needed.
func Open(path string) (*CatalogStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening catalog store at %s", path)

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	// Serialized writes with concurrent readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &CatalogStore{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	s.detectVecExtension()
	return s, nil
}

// detectVecExtension checks whether the sqlite-vec extension is loaded into
// the driver. When it is (sqlite_vec build tag with cgo), SearchVectors
// pushes the similarity ranking into SQL instead of scanning in Go.
func (s *CatalogStore) detectVecExtension() {
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		s.vectorExt = false
		return
	}
	s.vectorExt = true
	logging.Store("sqlite-vec %s available, using SQL similarity ranking", version)
}

// VectorSearchAccelerated reports whether semantic search runs through the
// sqlite-vec extension rather than the in-process scan.
func (s *CatalogStore) VectorSearchAccelerated() bool {
	return s.vectorExt
}

// Close closes the underlying database.
func (s *CatalogStore) Close() error {
	return s.db.Close()
}

// Entries returns all catalog entries for an area in insertion (rowid)
// order. The order is the tie-break order of the matching strategies, so it
// must stay stable across calls.
func (s *CatalogStore) Entries(area string) ([]catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryEntries("SELECT area, macroprocess, process, subprocess, activity, code, code_type, author FROM catalog_entries WHERE area = ? ORDER BY id", area)
}

// AllEntries returns every catalog entry in insertion order.
func (s *CatalogStore) AllEntries() ([]catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryEntries("SELECT area, macroprocess, process, subprocess, activity, code, code_type, author FROM catalog_entries ORDER BY id")
}

func (s *CatalogStore) queryEntries(query string, args ...interface{}) ([]catalog.Entry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Entries query failed: %v", err)
		return nil, fmt.Errorf("failed to query catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var e catalog.Entry
		if err := rows.Scan(&e.Area, &e.Macroprocess, &e.Process, &e.Subprocess, &e.Activity, &e.Code, &e.CodeType, &e.Author); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Areas returns the distinct area codes present in the catalog.
func (s *CatalogStore) Areas() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT DISTINCT area FROM catalog_entries ORDER BY area")
	if err != nil {
		return nil, fmt.Errorf("failed to query areas: %w", err)
	}
	defer rows.Close()

	var areas []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// Insert persists a new catalog entry. Unique-code violations surface as
// ErrDuplicateCode, duplicate hierarchy tuples as ErrDuplicateActivity.
func (s *CatalogStore) Insert(e catalog.Entry) error {
	timer := logging.StartTimer(logging.CategoryStore, "Insert")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Inserting entry code=%s area=%s activity=%q", e.Code, e.Area, e.Activity)

	_, err := s.db.Exec(
		"INSERT INTO catalog_entries (area, macroprocess, process, subprocess, activity, code, code_type, author) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.Area, e.Macroprocess, e.Process, e.Subprocess, e.Activity, e.Code, e.CodeType, e.Author,
	)
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "catalog_entries.code"):
			logging.Get(logging.CategoryStore).Error("Duplicate code %s: sequence counter invariant broken", e.Code)
			return fmt.Errorf("%w: %s", ErrDuplicateCode, e.Code)
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return fmt.Errorf("%w: %s", ErrDuplicateActivity, e.Key())
		default:
			return fmt.Errorf("failed to insert catalog entry: %w", err)
		}
	}
	return nil
}

// NextCode atomically increments the area's sequence counter and returns a
// freshly minted code, e.g. "CGBEN.GER.007". The increment and read happen
// in one statement so concurrent calls never observe the same value; the
// unique index on catalog_entries.code is the final guard.
func (s *CatalogStore) NextCode(area string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next int64
	err := s.db.QueryRow(
		"INSERT INTO area_sequences (area, next) VALUES (?, 1) ON CONFLICT(area) DO UPDATE SET next = next + 1 RETURNING next",
		area,
	).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("failed to advance sequence for area %s: %w", area, err)
	}

	code := fmt.Sprintf("%s.GER.%03d", area, next)
	logging.StoreDebug("Minted code %s (sequence=%d)", code, next)
	return code, nil
}
