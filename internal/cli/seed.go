package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load entities from the seed file",
		Long:  "Insert entities from $CORTEX_HOME/seed_entities.yaml that do not exist yet. Existing entities are left untouched.",
		Run:   runSeed,
	}
	RootCmd.AddCommand(cmd)
}

func runSeed(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	seeds, err := pipeline.LoadSeedEntities(cfg.SeedEntitiesPath())
	if err != nil {
		exitErr("load seed entities", err)
	}
	if len(seeds) == 0 {
		fmt.Printf("No seed entities at %s\n", cfg.SeedEntitiesPath())
		return
	}

	ing, s, idx := openIngestor(cfg)
	defer s.Close()
	defer idx.Close()

	n, err := ing.SeedEntities(cmd.Context(), seeds)
	if err != nil {
		exitErr("seed", err)
	}
	fmt.Printf("✓ Seeded %d of %d entities\n", n, len(seeds))
}
