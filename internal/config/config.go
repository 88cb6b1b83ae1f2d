// Package config loads MapaGov configuration from YAML with environment
// overrides. The config file lives at .mapagov/config.yaml under the
// workspace root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all MapaGov resolution service configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Store      StoreConfig      `yaml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generative GenerativeConfig `yaml:"generative"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig configures the SQLite catalog store.
type StoreConfig struct {
	// DatabasePath is the catalog database location, relative to the
	// workspace unless absolute.
	DatabasePath string `yaml:"database_path"`
	// EmbedCachePath is the embedding cache database location.
	EmbedCachePath string `yaml:"embed_cache_path"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "genai"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	Timeout        string `yaml:"timeout"`
}

// GenerativeConfig configures the activity-label generator.
type GenerativeConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// PipelineConfig holds the cascade thresholds.
// Fuzzy and semantic cutoffs are independent constants; they are not
// interchangeable and are calibrated separately.
type PipelineConfig struct {
	FuzzyThreshold    float64 `yaml:"fuzzy_threshold"`
	SemanticThreshold float64 `yaml:"semantic_threshold"`
	SemanticTopK      int     `yaml:"semantic_top_k"`
	MaxCandidates     int     `yaml:"max_candidates"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Name:    "mapagov",
		Version: "1.0.0",
		Store: StoreConfig{
			DatabasePath:   filepath.Join(".mapagov", "catalog.db"),
			EmbedCachePath: filepath.Join(".mapagov", "embed_cache.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			Timeout:        "30s",
		},
		Generative: GenerativeConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "60s",
		},
		Pipeline: PipelineConfig{
			FuzzyThreshold:    0.82,
			SemanticThreshold: 0.75,
			SemanticTopK:      5,
			MaxCandidates:     3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, merging over defaults and applying
// environment overrides. A missing file is not an error: defaults plus
// environment are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment-variable overrides. GEMINI_API_KEY feeds
// both GenAI consumers unless a more specific variable is set.
func (c *Config) applyEnv() {
	if v := os.Getenv("MAPAGOV_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("MAPAGOV_EMBED_CACHE_PATH"); v != "" {
		c.Store.EmbedCachePath = v
	}
	if v := os.Getenv("MAPAGOV_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = v
		}
		if c.Generative.APIKey == "" {
			c.Generative.APIKey = v
		}
	}
	if v := os.Getenv("MAPAGOV_GENERATIVE_MODEL"); v != "" {
		c.Generative.Model = v
	}
	if v := os.Getenv("MAPAGOV_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// Validate checks threshold ranges and required fields.
func (c *Config) Validate() error {
	if c.Pipeline.FuzzyThreshold < 0 || c.Pipeline.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold %.2f out of range [0,1]", c.Pipeline.FuzzyThreshold)
	}
	if c.Pipeline.SemanticThreshold < 0 || c.Pipeline.SemanticThreshold > 1 {
		return fmt.Errorf("semantic_threshold %.2f out of range [0,1]", c.Pipeline.SemanticThreshold)
	}
	if c.Pipeline.SemanticTopK <= 0 {
		return fmt.Errorf("semantic_top_k must be positive, got %d", c.Pipeline.SemanticTopK)
	}
	if c.Pipeline.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive, got %d", c.Pipeline.MaxCandidates)
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required")
	}
	return nil
}

// EmbeddingTimeout parses the embedding call timeout, falling back to 30s.
func (c *Config) EmbeddingTimeout() time.Duration {
	return parseTimeout(c.Embedding.Timeout, 30*time.Second)
}

// GenerativeTimeout parses the generative call timeout, falling back to 60s.
func (c *Config) GenerativeTimeout() time.Duration {
	return parseTimeout(c.Generative.Timeout, 60*time.Second)
}

func parseTimeout(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
