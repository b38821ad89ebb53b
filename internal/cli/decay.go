package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/logging"
	"github.com/cortexmem/cortex/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Apply importance decay to active memories",
		Long:  "Multiply every unprotected active memory's importance by the decay rate, archiving memories that fall below the floor. Use --dry-run to preview without writing.",
		Run:   runDecay,
	}

	cmd.Flags().Float64("rate", 0, "Decay rate (default from config)")
	cmd.Flags().Float64("min-importance", 0, "Archive threshold (default from config)")
	cmd.Flags().Bool("dry-run", false, "Report what would happen without applying")

	RootCmd.AddCommand(cmd)
}

func runDecay(cmd *cobra.Command, args []string) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg := loadConfig()
	opts := pipeline.DecayOptions{
		Rate:          cfg.Consolidation.DecayRate,
		MinImportance: cfg.Consolidation.MinImportance,
		DryRun:        dryRun,
	}
	if cmd.Flags().Changed("rate") {
		opts.Rate, _ = cmd.Flags().GetFloat64("rate")
	}
	if cmd.Flags().Changed("min-importance") {
		opts.MinImportance, _ = cmd.Flags().GetFloat64("min-importance")
	}

	s := openStore(cfg)
	defer s.Close()

	eng := pipeline.NewDecayEngine(s, logging.Component("decay"))
	report, err := eng.Run(cmd.Context(), opts)
	if err != nil {
		exitErr("decay", err)
	}

	if jsonOut {
		printJSON(report)
		return
	}
	prefix := "✓"
	if report.DryRun {
		prefix = "Dry run:"
	}
	fmt.Printf("%s %d decayed, %d archived, %d protected, %d skipped (of %d scanned)\n",
		prefix, report.Decayed, report.Archived, report.Protected, report.Skipped, report.Scanned)
	for _, p := range report.Preview {
		fmt.Printf("  %-9s %.2f → %.2f  %s\n", p.Action, p.Importance, p.NewImportance, p.Content)
	}
}
