// Package config builds the single explicit configuration object the rest
// of the system receives at construction time. There is no hidden global:
// main loads one Config and passes it down.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all tunables the core consumes but does not own.
type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Vector struct {
		Path       string `yaml:"path"`
		Collection string `yaml:"collection"`
		// Embedder selects the embedding provider: "local", "ollama" or
		// "openai". Local is a deterministic hash embedder that needs no
		// network.
		Embedder     string `yaml:"embedder"`
		EmbedModel   string `yaml:"embed_model"`
		EmbedBaseURL string `yaml:"embed_base_url"`
	} `yaml:"vector"`
	Analysis struct {
		Provider       string `yaml:"provider"`
		Model          string `yaml:"model"`
		MemoryWindow   int    `yaml:"memory_window"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"analysis"`
	Context struct {
		TTLDays      int `yaml:"ttl_days"`
		MaxOpenLoops int `yaml:"max_open_loops"`
		MaxMemories  int `yaml:"max_memories"`
	} `yaml:"context"`
	Consolidation struct {
		DecayRate     float64 `yaml:"decay_rate"`
		MinImportance float64 `yaml:"min_importance"`
	} `yaml:"consolidation"`
	Service struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"service"`

	// Home is the resolved data directory ($CORTEX_HOME or ~/.cortex).
	Home string `yaml:"-"`
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	cfg := &Config{Home: home}
	cfg.Database.Path = filepath.Join(home, "data", "cortex.db")
	cfg.Vector.Path = filepath.Join(home, "data", "chromem")
	cfg.Vector.Collection = "cortex_memories"
	cfg.Vector.Embedder = "local"
	cfg.Analysis.Provider = "anthropic"
	cfg.Analysis.Model = "claude-haiku-4-5"
	cfg.Analysis.MemoryWindow = 200
	cfg.Analysis.TimeoutSeconds = 60
	cfg.Context.TTLDays = 7
	cfg.Context.MaxOpenLoops = 5
	cfg.Context.MaxMemories = 10
	cfg.Consolidation.DecayRate = 0.95
	cfg.Consolidation.MinImportance = 0.1
	cfg.Service.Host = "127.0.0.1"
	cfg.Service.Port = 8420
	return cfg
}

// Home resolves the data directory from $CORTEX_HOME, defaulting to
// ~/.cortex.
func Home() string {
	if env := os.Getenv("CORTEX_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cortex"
	}
	return filepath.Join(home, ".cortex")
}

// Load reads $CORTEX_HOME/.env into the environment, then overlays
// $CORTEX_HOME/config.yaml on the defaults. A missing config file is not an
// error; defaults apply.
func Load() (*Config, error) {
	home := Home()
	// Ignore a missing .env; values already in the environment win.
	godotenv.Load(filepath.Join(home, ".env"))

	cfg := Default(home)
	path := filepath.Join(home, "config.yaml")
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to $CORTEX_HOME/config.yaml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Home, 0o755); err != nil {
		return fmt.Errorf("create home dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Home, "config.yaml"), b, 0o644)
}

// SeedEntitiesPath is the location of the optional seed entities file.
func (c *Config) SeedEntitiesPath() string {
	return filepath.Join(c.Home, "seed_entities.yaml")
}
