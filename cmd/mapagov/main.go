// mapagov resolves free-text descriptions of public-sector work activities
// against the canonical activity catalog, and extends the catalog when no
// match exists.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mapagov/internal/config"
	"mapagov/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mapagov",
	Short: "MapaGov - activity resolution for public-sector process mapping",
	Long: `mapagov resolves a free-text description of a work activity to a
canonical (macroprocess, process, subprocess, activity) entry of the
official catalog, cascading through exact, fuzzy and semantic matching.

When no strategy qualifies, the full hierarchy is returned for manual
selection, and a new entry can be minted from a chosen anchor with an
LLM-generated canonical label.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Secrets like GEMINI_API_KEY may live in a local .env.
		_ = godotenv.Load()

		if workspace == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to determine workspace: %w", err)
			}
			workspace = cwd
		}

		if configPath == "" {
			configPath = filepath.Join(workspace, ".mapagov", "config.yaml")
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		if err := logging.Initialize(workspace); err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: <workspace>/.mapagov/config.yaml)")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(finalizeCmd)
}

// databasePath resolves a configured path against the workspace.
func databasePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
