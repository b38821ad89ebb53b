package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/contextgen"
	"github.com/cortexmem/cortex/internal/llm"
	"github.com/cortexmem/cortex/internal/logging"
	"github.com/cortexmem/cortex/internal/pipeline"
	"github.com/cortexmem/cortex/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP service",
		Run:   runServe,
	}

	cmd.Flags().Int("port", 0, "Listen port (default from config)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		cfg.Service.Port = p
	}

	ing, s, idx := openIngestor(cfg)
	defer s.Close()
	defer idx.Close()

	// Keep seed entities current on startup, mirroring init.
	if seeds, err := pipeline.LoadSeedEntities(cfg.SeedEntitiesPath()); err == nil && len(seeds) > 0 {
		ing.SeedEntities(cmd.Context(), seeds)
	}

	log := logging.Component("service")

	// The service starts without a provider rather than failing; only
	// /analyze needs one.
	var analyzer *contextgen.Analyzer
	if provider, err := llm.New(cfg.Analysis.Provider, cfg.Analysis.Model); err == nil {
		analyzer = contextgen.NewAnalyzer(s, provider, cfg, logging.Component("analyze"))
	} else {
		log.WithError(err).Warn("analysis provider unavailable")
	}

	srv := service.New(cfg, s, idx, ing,
		pipeline.NewDecayEngine(s, logging.Component("decay")),
		analyzer,
		contextgen.NewHandoff(s, cfg, logging.Component("context")),
		log)

	fmt.Printf("🧠 Cortex Memory starting on http://%s:%d\n", cfg.Service.Host, cfg.Service.Port)
	if err := srv.Listen(); err != nil {
		exitErr("serve", err)
	}
}
