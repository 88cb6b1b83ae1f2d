package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"mapagov/internal/logging"
)

// EmbedCache memoizes embedding vectors by content hash so re-seeding the
// catalog does not re-pay provider calls for unchanged activity text.
// It lives in its own database, opened with the pure-Go driver: the cache
// is disposable and must not require the cgo toolchain.
type EmbedCache struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenEmbedCache opens (or creates) the cache database at path.
func OpenEmbedCache(path string) (*EmbedCache, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embed cache: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS embed_cache (
		hash       TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		dims       INTEGER NOT NULL,
		embedding  BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create embed_cache table: %w", err)
	}

	return &EmbedCache{db: db}, nil
}

// Close closes the cache database.
func (c *EmbedCache) Close() error {
	return c.db.Close()
}

// cacheKey hashes model+text so switching embedding models invalidates
// cached vectors.
func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for (model, text), or nil on a miss.
func (c *EmbedCache) Get(model, text string) []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var blob []byte
	var dims int
	err := c.db.QueryRow("SELECT embedding, dims FROM embed_cache WHERE hash = ?", cacheKey(model, text)).Scan(&blob, &dims)
	if err != nil {
		return nil
	}
	vec, err := decodeVector(blob, dims)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("Dropping corrupt cached embedding: %v", err)
		return nil
	}
	return vec
}

// Put stores a vector for (model, text).
func (c *EmbedCache) Put(model, text string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO embed_cache (hash, model, dims, embedding) VALUES (?, ?, ?, ?)",
		cacheKey(model, text), model, len(vec), encodeVector(vec),
	)
	if err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}
