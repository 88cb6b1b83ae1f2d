package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingEngine is a deterministic embedding double that counts calls.
type countingEngine struct {
	mu    sync.Mutex
	calls int
}

func (f *countingEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	// Cheap deterministic vector derived from the text bytes.
	vec := make([]float32, 8)
	for i, b := range []byte(text) {
		vec[i%8] += float32(b) / 255
	}
	return vec, nil
}

func (f *countingEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var err error
		if out[i], err = f.Embed(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *countingEngine) Dimensions() int { return 8 }
func (f *countingEngine) Name() string    { return "counting:test" }

func (f *countingEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestIndexEntriesUsesCache(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SeedDemo()
	require.NoError(t, err)

	entries, err := s.Entries("CGBEN")
	require.NoError(t, err)

	cache, err := OpenEmbedCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	engine := &countingEngine{}
	require.NoError(t, s.IndexEntries(context.Background(), engine, cache, entries))
	require.Equal(t, len(entries), engine.callCount())

	n, err := s.VectorCount("CGBEN")
	require.NoError(t, err)
	require.Equal(t, len(entries), n)

	// Second pass is served entirely from the cache.
	require.NoError(t, s.IndexEntries(context.Background(), engine, cache, entries))
	require.Equal(t, len(entries), engine.callCount())
}

type failingEngine struct{ countingEngine }

func (f *failingEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("provider unreachable")
}

func TestIndexEntriesPropagatesEngineFailure(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SeedDemo()
	require.NoError(t, err)

	entries, err := s.Entries("CGTIC")
	require.NoError(t, err)

	err = s.IndexEntries(context.Background(), &failingEngine{}, nil, entries)
	require.Error(t, err)
}
