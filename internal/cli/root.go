// Package cli implements the cortex CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/config"
	"github.com/cortexmem/cortex/internal/contextgen"
	"github.com/cortexmem/cortex/internal/llm"
	"github.com/cortexmem/cortex/internal/logging"
	"github.com/cortexmem/cortex/internal/pipeline"
	"github.com/cortexmem/cortex/internal/store"
	"github.com/cortexmem/cortex/internal/vector"
)

var (
	jsonOut bool
	dbPath  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Local-first memory for AI assistants",
	Long:  "Cortex keeps a persistent, decaying memory for a conversational assistant. SQLite-backed with a local vector mirror; everything stays on your machine.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output JSON instead of text")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Override the SQLite database path")
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg
}

func openStore(cfg *config.Config) *store.SQLiteStore {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func openIndex(cfg *config.Config) vector.Index {
	embed, err := vector.NewEmbeddingFunc(cfg.Vector.Embedder, cfg.Vector.EmbedModel, cfg.Vector.EmbedBaseURL)
	if err != nil {
		exitErr("embedder", err)
	}
	idx, err := vector.NewChromemIndex(cfg.Vector.Path, cfg.Vector.Collection, embed)
	if err != nil {
		exitErr("open vector index", err)
	}
	return idx
}

func openIngestor(cfg *config.Config) (*pipeline.Ingestor, *store.SQLiteStore, vector.Index) {
	s := openStore(cfg)
	idx := openIndex(cfg)
	return pipeline.NewIngestor(s, idx, logging.Component("pipeline")), s, idx
}

func newAnalyzer(cfg *config.Config, s *store.SQLiteStore) *contextgen.Analyzer {
	provider, err := llm.New(cfg.Analysis.Provider, cfg.Analysis.Model)
	if err != nil {
		exitErr("analysis provider", err)
	}
	return contextgen.NewAnalyzer(s, provider, cfg, logging.Component("analyze"))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
