package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/logging"
	"github.com/cortexmem/cortex/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check record store and vector mirror for divergence",
		Run:   runReconcile,
	}
	RootCmd.AddCommand(cmd)
}

func runReconcile(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	idx := openIndex(cfg)
	defer idx.Close()

	rec := pipeline.NewReconciler(s, idx, logging.Component("reconcile"))
	report, err := rec.Run(cmd.Context())
	if err != nil {
		exitErr("reconcile", err)
	}

	if jsonOut {
		printJSON(report)
		return
	}
	if report.Consistent {
		fmt.Printf("✓ Consistent: %d memories, %d mirror records\n", report.StoreMemories, report.VectorCount)
		return
	}
	fmt.Printf("⚠ Divergence detected\n")
	fmt.Printf("  Active rows missing mirror records: %d\n", len(report.MissingMirror))
	for _, id := range report.MissingMirror {
		fmt.Printf("    %s\n", id)
	}
	fmt.Printf("  Mirror records with no backing row: %d\n", report.OrphanMirrors)
}
