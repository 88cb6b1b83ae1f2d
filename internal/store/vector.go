package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"mapagov/internal/catalog"
	"mapagov/internal/embedding"
	"mapagov/internal/logging"
)

// VectorHit is one semantic search result mapped back to its entry.
type VectorHit struct {
	Entry      catalog.Entry
	Similarity float64
}

// UpsertVector stores (or replaces) the embedding for a catalog code.
func (s *CatalogStore) UpsertVector(code, area, model string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO catalog_vectors (code, area, dims, embedding, model) VALUES (?, ?, ?, ?, ?)",
		code, area, len(vec), encodeVector(vec), model,
	)
	if err != nil {
		return fmt.Errorf("failed to store vector for %s: %w", code, err)
	}
	return nil
}

// VectorCount returns how many catalog codes have an indexed embedding.
func (s *CatalogStore) VectorCount(area string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM catalog_vectors WHERE area = ?", area).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// SearchVectors returns the top-K area-scoped entries nearest to the query
// vector by cosine similarity. With the sqlite-vec extension loaded (the
// sqlite_vec build tag with cgo) the ranking runs inside SQLite; otherwise
// the vectors are scanned in Go, which is fine at catalog scale.
func (s *CatalogStore) SearchVectors(area string, query []float32, k int) ([]VectorHit, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchVectors")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vectorExt {
		hits, err := s.searchVectorsSQL(area, query, k)
		if err == nil {
			return hits, nil
		}
		logging.Get(logging.CategoryStore).Warn("sqlite-vec search failed, falling back to scan: %v", err)
	}
	return s.searchVectorsScan(area, query, k)
}

// searchVectorsSQL ranks vectors with sqlite-vec's vec_distance_cosine.
// Cosine distance is 1 - similarity, so ascending distance is descending
// similarity.
func (s *CatalogStore) searchVectorsSQL(area string, query []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.Query(`
		SELECT e.area, e.macroprocess, e.process, e.subprocess, e.activity, e.code, e.code_type, e.author,
		       vec_distance_cosine(v.embedding, ?) AS distance
		FROM catalog_vectors v
		JOIN catalog_entries e ON e.code = v.code
		WHERE v.area = ? AND v.dims = ?
		ORDER BY distance ASC
		LIMIT ?`, encodeVector(query), area, len(query), k)
	if err != nil {
		return nil, fmt.Errorf("vec search query failed: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var e catalog.Entry
		var distance float64
		if err := rows.Scan(&e.Area, &e.Macroprocess, &e.Process, &e.Subprocess, &e.Activity, &e.Code, &e.CodeType, &e.Author, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan vec search row: %w", err)
		}
		hits = append(hits, VectorHit{Entry: e, Similarity: 1.0 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logging.StoreDebug("SearchVectors (sqlite-vec) area=%s hits=%d", area, len(hits))
	return hits, nil
}

func (s *CatalogStore) searchVectorsScan(area string, query []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.Query(`
		SELECT e.area, e.macroprocess, e.process, e.subprocess, e.activity, e.code, e.code_type, e.author, v.embedding, v.dims
		FROM catalog_vectors v
		JOIN catalog_entries e ON e.code = v.code
		WHERE v.area = ?
		ORDER BY e.id`, area)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	var corpus [][]float32
	for rows.Next() {
		var e catalog.Entry
		var blob []byte
		var dims int
		if err := rows.Scan(&e.Area, &e.Macroprocess, &e.Process, &e.Subprocess, &e.Activity, &e.Code, &e.CodeType, &e.Author, &blob, &dims); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		vec, err := decodeVector(blob, dims)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping corrupt vector for %s: %v", e.Code, err)
			continue
		}
		entries = append(entries, e)
		corpus = append(corpus, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := embedding.FindTopK(query, corpus, k)
	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, VectorHit{Entry: entries[r.Index], Similarity: r.Similarity})
	}

	logging.StoreDebug("SearchVectors area=%s scanned=%d hits=%d", area, len(corpus), len(hits))
	return hits, nil
}

// encodeVector serializes a float32 vector as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a little-endian float32 vector.
func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != 4*dims {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d for %d dims", len(blob), 4*dims, dims)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
