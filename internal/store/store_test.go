package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mapagov/internal/catalog"
)

func openTestStore(t *testing.T) *CatalogStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeedDemoAndEntries(t *testing.T) {
	s := openTestStore(t)

	res, err := s.SeedDemo()
	require.NoError(t, err)
	require.Greater(t, res.Inserted, 0)
	require.Zero(t, res.Skipped)

	entries, err := s.Entries("CGBEN")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		require.Equal(t, "CGBEN", e.Area)
		require.Equal(t, catalog.CodeTypeOfficial, e.CodeType)
		require.NotEmpty(t, e.Code)
	}

	areas, err := s.Areas()
	require.NoError(t, err)
	require.Equal(t, []string{"CGBEN", "CGTIC"}, areas)
}

func TestSeedIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	first, err := s.SeedDemo()
	require.NoError(t, err)

	second, err := s.SeedDemo()
	require.NoError(t, err)
	require.Zero(t, second.Inserted)
	require.Equal(t, first.Inserted, second.Skipped)
}

func TestEntriesOrderIsStable(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SeedDemo()
	require.NoError(t, err)

	a, err := s.Entries("CGBEN")
	require.NoError(t, err)
	b, err := s.Entries("CGBEN")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestInsertDuplicateCode(t *testing.T) {
	s := openTestStore(t)

	e := catalog.Entry{
		Area: "CGBEN", Macroprocess: "M", Process: "P", Subprocess: "S",
		Activity: "Analisar requerimento", Code: "CGBEN.01.01.001",
		CodeType: catalog.CodeTypeOfficial,
	}
	require.NoError(t, s.Insert(e))

	dup := e
	dup.Activity = "Outra atividade"
	err := s.Insert(dup)
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestInsertDuplicateActivityTuple(t *testing.T) {
	s := openTestStore(t)

	e := catalog.Entry{
		Area: "CGBEN", Macroprocess: "M", Process: "P", Subprocess: "S",
		Activity: "Analisar requerimento", Code: "CGBEN.01.01.001",
	}
	require.NoError(t, s.Insert(e))

	dup := e
	dup.Code = "CGBEN.01.01.002"
	err := s.Insert(dup)
	require.ErrorIs(t, err, ErrDuplicateActivity)
}

func TestNextCodeMonotonic(t *testing.T) {
	s := openTestStore(t)

	first, err := s.NextCode("CGBEN")
	require.NoError(t, err)
	require.Equal(t, "CGBEN.GER.001", first)

	second, err := s.NextCode("CGBEN")
	require.NoError(t, err)
	require.Equal(t, "CGBEN.GER.002", second)

	// Counters are per area.
	other, err := s.NextCode("CGTIC")
	require.NoError(t, err)
	require.Equal(t, "CGTIC.GER.001", other)
}

func TestNextCodeConcurrentUnique(t *testing.T) {
	s := openTestStore(t)

	const n = 32
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := s.NextCode("CGBEN")
			if err != nil {
				t.Errorf("NextCode: %v", err)
				return
			}
			codes <- code
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		if seen[code] {
			t.Fatalf("duplicate code minted: %s", code)
		}
		seen[code] = true
	}
	require.Len(t, seen, n)
}

func TestVectorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SeedDemo()
	require.NoError(t, err)

	entries, err := s.Entries("CGBEN")
	require.NoError(t, err)

	// Hand-placed unit vectors: entry i points along axis i.
	for i, e := range entries {
		vec := make([]float32, len(entries))
		vec[i] = 1
		require.NoError(t, s.UpsertVector(e.Code, e.Area, "test", vec))
	}

	n, err := s.VectorCount("CGBEN")
	require.NoError(t, err)
	require.Equal(t, len(entries), n)

	query := make([]float32, len(entries))
	query[2] = 1
	hits, err := s.SearchVectors("CGBEN", query, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, entries[2].Code, hits[0].Entry.Code)
	require.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestSearchVectorsScanWhenExtensionAbsent(t *testing.T) {
	s := openTestStore(t)
	require.False(t, s.VectorSearchAccelerated())

	require.NoError(t, s.UpsertVector("X.01.01.001", "X", "test", []float32{1, 0}))
	require.NoError(t, s.Insert(catalog.Entry{
		Area: "X", Macroprocess: "M", Process: "P", Subprocess: "S",
		Activity: "Apurar dados cadastrais", Code: "X.01.01.001",
		CodeType: catalog.CodeTypeOfficial, Author: "seed@srv",
	}))

	hits, err := s.SearchVectors("X", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "X.01.01.001", hits[0].Entry.Code)
}

func TestSearchVectorsEmptyIndex(t *testing.T) {
	s := openTestStore(t)

	hits, err := s.SearchVectors("CGBEN", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestEncodeDecodeVector(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75, 0}
	decoded, err := decodeVector(encodeVector(vec), len(vec))
	require.NoError(t, err)
	require.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3}, 4)
	require.Error(t, err)
}

func TestEmbedCache(t *testing.T) {
	cache, err := OpenEmbedCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	require.Nil(t, cache.Get("m1", "texto"))

	vec := []float32{1, 2, 3}
	require.NoError(t, cache.Put("m1", "texto", vec))
	require.Equal(t, vec, cache.Get("m1", "texto"))

	// Different model is a different key.
	require.Nil(t, cache.Get("m2", "texto"))
}
