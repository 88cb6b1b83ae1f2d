package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"mapagov/internal/embedding"
	"mapagov/internal/generative"
	"mapagov/internal/pipeline"
	"mapagov/internal/store"
)

// openCatalog opens the catalog database configured for this workspace.
func openCatalog() (*store.CatalogStore, error) {
	return store.Open(databasePath(cfg.Store.DatabasePath))
}

// buildEngine creates the embedding engine, or returns nil when the
// provider cannot be constructed. The pipeline treats a missing engine as
// "semantic strategy disabled" rather than a fatal condition.
func buildEngine() embedding.Engine {
	engine, err := embedding.New(cfg.Embedding)
	if err != nil {
		logger.Warn("Embedding engine unavailable, semantic matching disabled", zap.Error(err))
		return nil
	}
	return engine
}

// buildLabeler creates the generative labeler, or nil when unconfigured.
func buildLabeler(ctx context.Context) generative.Labeler {
	labeler, err := generative.NewGeminiLabeler(ctx, cfg.Generative.APIKey, cfg.Generative.Model, cfg.GenerativeTimeout())
	if err != nil {
		logger.Warn("Generative labeler unavailable, catalog extension disabled", zap.Error(err))
		return nil
	}
	return labeler
}

// buildPipeline wires the full cascade for CLI commands.
func buildPipeline(ctx context.Context, s *store.CatalogStore) *pipeline.Pipeline {
	return pipeline.New(s, buildEngine(), buildLabeler(ctx), cfg.Pipeline, cfg.EmbeddingTimeout())
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
