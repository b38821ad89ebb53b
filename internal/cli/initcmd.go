package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/config"
	"github.com/cortexmem/cortex/internal/logging"
	"github.com/cortexmem/cortex/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the data directory and config",
		Long:  "Create $CORTEX_HOME, write the default config.yaml, initialize the database and vector store, and seed entities if a seed file exists.",
		Run:   runInit,
	}

	cmd.Flags().String("provider", "", "Analysis provider: anthropic or openai")
	cmd.Flags().String("model", "", "Analysis model override")
	cmd.Flags().Int("port", 0, "Service port")

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	home := config.Home()
	cfg := config.Default(home)

	// An existing config is the baseline so re-running init keeps edits.
	if _, err := os.Stat(filepath.Join(home, "config.yaml")); err == nil {
		cfg = loadConfig()
	}

	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Analysis.Provider = v
		if m, _ := cmd.Flags().GetString("model"); m != "" {
			cfg.Analysis.Model = m
		} else if v == "openai" {
			cfg.Analysis.Model = "gpt-4o-mini"
		} else {
			cfg.Analysis.Model = "claude-haiku-4-5"
		}
	}
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		cfg.Service.Port = p
	}

	if err := cfg.Save(); err != nil {
		exitErr("save config", err)
	}
	fmt.Printf("✓ Config saved to %s\n", filepath.Join(home, "config.yaml"))

	s := openStore(cfg)
	defer s.Close()
	fmt.Println("✓ Database initialized")

	idx := openIndex(cfg)
	defer idx.Close()
	fmt.Printf("✓ Vector store ready (%d embeddings)\n", idx.Count())

	seeds, err := pipeline.LoadSeedEntities(cfg.SeedEntitiesPath())
	if err != nil {
		exitErr("load seed entities", err)
	}
	if len(seeds) > 0 {
		ing := pipeline.NewIngestor(s, idx, logging.Component("pipeline"))
		n, err := ing.SeedEntities(cmd.Context(), seeds)
		if err != nil {
			exitErr("seed entities", err)
		}
		if n > 0 {
			fmt.Printf("✓ Seeded %d entities\n", n)
		}
	}

	fmt.Printf("\n🧠 Cortex Memory is ready.\n  Home:    %s\n  Service: cortex serve\n", home)
}
