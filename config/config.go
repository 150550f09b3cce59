// Package config loads researchgo settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration.
type Config struct {
	// DataDir is where snapshots are written by the local blob store.
	DataDir string `yaml:"data_dir"`

	// HistoryPath is the SQLite query-history database; empty disables
	// history.
	HistoryPath string `yaml:"history_path"`

	// Codec names the ledger codec (see the codec package).
	Codec string `yaml:"codec"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Log       LogConfig       `yaml:"log"`
}

// EmbeddingConfig configures the embedding provider stack.
type EmbeddingConfig struct {
	Dimension int `yaml:"dimension"`

	// Cache memoizes embeddings by exact text.
	Cache bool `yaml:"cache"`

	// RPS > 0 rate-limits provider calls.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SearchConfig configures retrieval defaults.
type SearchConfig struct {
	TopK      int     `yaml:"top_k"`
	Threshold float32 `yaml:"threshold"`
}

// ReasoningConfig configures plan execution.
type ReasoningConfig struct {
	// Budget is the wall-clock budget for one plan; zero disables it.
	Budget time.Duration `yaml:"budget"`

	// Concurrent runs independent plan steps in parallel.
	Concurrent bool `yaml:"concurrent"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		DataDir: "./data",
		Codec:   "zstd+go-json",
		Embedding: EmbeddingConfig{
			Dimension: 256,
			Cache:     true,
		},
		Search: SearchConfig{
			TopK: 10,
		},
		Reasoning: ReasoningConfig{
			Budget: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Reasoning.Budget < 0 {
		return fmt.Errorf("reasoning.budget must not be negative, got %s", c.Reasoning.Budget)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
