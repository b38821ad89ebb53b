package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/store"
)

func init() {
	loopsCmd := &cobra.Command{
		Use:   "loops",
		Short: "Show open loops",
		Run:   runLoops,
	}
	loopsCmd.Flags().IntP("limit", "n", 10, "Max results")

	addCmd := &cobra.Command{
		Use:   "add [summary]",
		Short: "Record an open loop",
		Args:  cobra.MinimumNArgs(1),
		Run:   runLoopAdd,
	}
	addCmd.Flags().StringP("priority", "p", "medium", "Priority: high, medium, low")
	addCmd.Flags().StringP("question", "q", "", "Follow-up question to re-engage")
	addCmd.Flags().String("memory", "", "Source memory id")

	resolveCmd := &cobra.Command{
		Use:   "resolve [id]",
		Short: "Mark a loop resolved",
		Args:  cobra.ExactArgs(1),
		Run:   runLoopResolve,
	}

	rmCmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a loop",
		Args:  cobra.ExactArgs(1),
		Run:   runLoopRm,
	}

	loopsCmd.AddCommand(addCmd, resolveCmd, rmCmd)
	RootCmd.AddCommand(loopsCmd)
}

func runLoops(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	loops, err := s.UnresolvedLoops(cmd.Context(), limit)
	if err != nil {
		exitErr("loops", err)
	}

	if jsonOut {
		printJSON(loops)
		return
	}
	if len(loops) == 0 {
		fmt.Println("No open loops.")
		return
	}
	fmt.Printf("🔄 Open Loops (%d)\n\n", len(loops))
	for _, l := range loops {
		fmt.Printf("  [%s] %s\n", strings.ToUpper(l.Priority), l.Summary)
		if l.FollowUpQuestion != "" {
			fmt.Printf("    → %s\n", l.FollowUpQuestion)
		}
	}
}

func runLoopAdd(cmd *cobra.Command, args []string) {
	priority, _ := cmd.Flags().GetString("priority")
	question, _ := cmd.Flags().GetString("question")
	memoryID, _ := cmd.Flags().GetString("memory")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	loop, err := s.AddOpenLoop(cmd.Context(), store.AddLoopParams{
		Summary:          strings.Join(args, " "),
		Priority:         priority,
		FollowUpQuestion: question,
		SourceMemoryID:   memoryID,
	})
	if err != nil {
		exitErr("loops add", err)
	}
	fmt.Printf("✓ Loop recorded: %s\n", loop.ID)
}

func runLoopResolve(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	if err := s.ResolveLoop(cmd.Context(), args[0]); err != nil {
		exitErr("loops resolve", err)
	}
	fmt.Printf("✓ Resolved %s\n", args[0])
}

func runLoopRm(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	if err := s.DeleteLoop(cmd.Context(), args[0]); err != nil {
		exitErr("loops rm", err)
	}
	fmt.Printf("✓ Deleted %s\n", args[0])
}
