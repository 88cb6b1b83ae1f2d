package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mapagov/internal/store"
)

var (
	seedFilePath string
	seedDemo     bool
	seedNoIndex  bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a catalog seed file and build the semantic index",
	Long: `Loads canonical activities into the catalog database from a YAML seed
file (or the embedded demo catalog), then embeds every activity and stores
the vectors for semantic matching. Re-running over an existing catalog
skips entries already present.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFilePath, "file", "f", "", "YAML seed file to load")
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "load the embedded demonstration catalog")
	seedCmd.Flags().BoolVar(&seedNoIndex, "no-index", false, "skip building the semantic index")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedFilePath == "" && !seedDemo {
		return fmt.Errorf("either --file or --demo is required")
	}

	s, err := openCatalog()
	if err != nil {
		return err
	}
	defer s.Close()

	var res store.SeedResult
	if seedDemo {
		res, err = s.SeedDemo()
	} else {
		res, err = s.SeedFromFile(seedFilePath)
	}
	if err != nil {
		return err
	}
	logger.Info("Catalog seeded",
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped))

	if seedNoIndex {
		return nil
	}

	engine := buildEngine()
	if engine == nil {
		logger.Warn("Skipping semantic index: no embedding engine")
		return nil
	}

	cache, err := store.OpenEmbedCache(databasePath(cfg.Store.EmbedCachePath))
	if err != nil {
		return err
	}
	defer cache.Close()

	entries, err := s.AllEntries()
	if err != nil {
		return err
	}
	if err := s.IndexEntries(cmd.Context(), engine, cache, entries); err != nil {
		return fmt.Errorf("semantic indexing failed: %w", err)
	}
	logger.Info("Semantic index built", zap.Int("entries", len(entries)), zap.String("engine", engine.Name()))
	return nil
}
