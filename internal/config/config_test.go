package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CORTEX_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Analysis.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Analysis.Provider)
	}
	if cfg.Context.TTLDays != 7 || cfg.Context.MaxOpenLoops != 5 || cfg.Context.MaxMemories != 10 {
		t.Errorf("context defaults = %+v", cfg.Context)
	}
	if cfg.Consolidation.DecayRate != 0.95 || cfg.Consolidation.MinImportance != 0.1 {
		t.Errorf("consolidation defaults = %+v", cfg.Consolidation)
	}
	if cfg.Service.Port != 8420 {
		t.Errorf("port = %d", cfg.Service.Port)
	}
	if cfg.Vector.Embedder != "local" {
		t.Errorf("embedder = %q", cfg.Vector.Embedder)
	}
}

func TestLoadOverlay(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CORTEX_HOME", home)

	yaml := []byte("service:\n  port: 9000\nconsolidation:\n  decay_rate: 0.9\n")
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.Port != 9000 {
		t.Errorf("port = %d, want overlay 9000", cfg.Service.Port)
	}
	if cfg.Consolidation.DecayRate != 0.9 {
		t.Errorf("decay rate = %v", cfg.Consolidation.DecayRate)
	}
	// Untouched keys keep their defaults.
	if cfg.Context.TTLDays != 7 {
		t.Errorf("ttl = %d", cfg.Context.TTLDays)
	}
	if cfg.Database.Path != filepath.Join(home, "data", "cortex.db") {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CORTEX_HOME", home)

	cfg := Default(home)
	cfg.Service.Port = 9999
	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Service.Port != 9999 {
		t.Errorf("port = %d", loaded.Service.Port)
	}
}
