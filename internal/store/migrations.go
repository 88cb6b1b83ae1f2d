package store

import (
	"fmt"

	"mapagov/internal/logging"
)

// Schema versions:
// v1: catalog_entries + area_sequences tables
// v2: catalog_vectors table for semantic search
const currentSchemaVersion = 2

// migrations holds the ordered DDL per schema version. Applied inside one
// transaction so a failed upgrade leaves the previous version intact.
var migrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS catalog_entries (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			area         TEXT NOT NULL,
			macroprocess TEXT NOT NULL,
			process      TEXT NOT NULL,
			subprocess   TEXT NOT NULL,
			activity     TEXT NOT NULL,
			code         TEXT NOT NULL,
			code_type    TEXT NOT NULL DEFAULT 'oficial',
			author       TEXT NOT NULL DEFAULT '',
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_code ON catalog_entries(code)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_tuple ON catalog_entries(macroprocess, process, subprocess, activity)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_area ON catalog_entries(area)`,
		`CREATE TABLE IF NOT EXISTS area_sequences (
			area TEXT PRIMARY KEY,
			next INTEGER NOT NULL DEFAULT 0
		)`,
	},
	2: {
		`CREATE TABLE IF NOT EXISTS catalog_vectors (
			code       TEXT PRIMARY KEY REFERENCES catalog_entries(code),
			area       TEXT NOT NULL,
			dims       INTEGER NOT NULL,
			embedding  BLOB NOT NULL,
			model      TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_area ON catalog_vectors(area)`,
	},
}

// migrate upgrades the schema to currentSchemaVersion.
func (s *CatalogStore) migrate() error {
	timer := logging.StartTimer(logging.CategoryStore, "migrate")
	defer timer.Stop()

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Fresh database.
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (0)"); err != nil {
			return fmt.Errorf("failed to initialize schema version: %w", err)
		}
		version = 0
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("catalog database schema v%d is newer than supported v%d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		logging.StoreDebug("Schema up to date at v%d", version)
		return nil
	}

	logging.Store("Migrating catalog schema v%d -> v%d", version, currentSchemaVersion)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	for v := version + 1; v <= currentSchemaVersion; v++ {
		for _, stmt := range migrations[v] {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("migration to v%d failed: %w", v, err)
			}
		}
		logging.StoreDebug("Applied schema migration v%d", v)
	}

	if _, err := tx.Exec("UPDATE schema_version SET version = ?", currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}
