package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mapagov/internal/catalog"
	"mapagov/internal/embedding"
	"mapagov/internal/logging"
)

// indexWorkers bounds concurrent embedding calls during indexing.
const indexWorkers = 4

// IndexEntries embeds and indexes the given catalog entries. Vectors are
// looked up in the cache first; misses are embedded through the engine and
// written back. Entries are embedded from their normalized activity text so
// index and query vectors agree.
func (s *CatalogStore) IndexEntries(ctx context.Context, engine embedding.Engine, cache *EmbedCache, entries []catalog.Entry) error {
	timer := logging.StartTimer(logging.CategoryStore, "IndexEntries")
	defer timer.Stop()

	logging.Store("Indexing %d catalog entries with engine %s", len(entries), engine.Name())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexWorkers)

	for _, e := range entries {
		g.Go(func() error {
			text := catalog.Normalize(e.Activity)

			var vec []float32
			if cache != nil {
				vec = cache.Get(engine.Name(), text)
			}
			if vec == nil {
				var err error
				vec, err = engine.Embed(gctx, text)
				if err != nil {
					return fmt.Errorf("failed to embed %s: %w", e.Code, err)
				}
				if cache != nil {
					if err := cache.Put(engine.Name(), text, vec); err != nil {
						logging.Get(logging.CategoryStore).Warn("Embed cache write failed for %s: %v", e.Code, err)
					}
				}
			}

			return s.UpsertVector(e.Code, e.Area, engine.Name(), vec)
		})
	}

	return g.Wait()
}
