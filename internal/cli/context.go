package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/contextgen"
	"github.com/cortexmem/cortex/internal/logging"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Get the prepared context for session injection",
		Long:  "Print the pending prepared context. By default this consumes it; use --peek to read without consuming. With --fallback a degraded context is assembled from open loops and recent memories when nothing is pending.",
		Run:   runContext,
	}

	cmd.Flags().Bool("peek", false, "Do not mark the context as used")
	cmd.Flags().Bool("fallback", false, "Build a fallback context when nothing is pending")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	peek, _ := cmd.Flags().GetBool("peek")
	fallback, _ := cmd.Flags().GetBool("fallback")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	h := contextgen.NewHandoff(s, cfg, logging.Component("context"))
	inj, err := h.Get(cmd.Context(), peek, fallback)
	if err != nil {
		exitErr("context", err)
	}

	if jsonOut {
		printJSON(inj)
		return
	}
	fmt.Printf("📋 Context (source: %s)\n\n%s\n", inj.Source, inj.Prompt)
}
