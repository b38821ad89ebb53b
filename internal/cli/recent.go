package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recent memories",
		Run:   runRecent,
	}

	cmd.Flags().IntP("limit", "n", 10, "Max results")
	cmd.Flags().StringP("type", "t", "", "Filter by memory type")
	cmd.Flags().Bool("archived", false, "Include archived memories")

	RootCmd.AddCommand(cmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	memType, _ := cmd.Flags().GetString("type")
	archived, _ := cmd.Flags().GetBool("archived")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	memories, err := s.ListMemories(cmd.Context(), store.ListMemoriesParams{
		Type:            memType,
		Limit:           limit,
		IncludeArchived: archived,
	})
	if err != nil {
		exitErr("recent", err)
	}

	if jsonOut {
		printJSON(memories)
		return
	}
	if len(memories) == 0 {
		fmt.Println("No memories yet.")
		return
	}
	fmt.Printf("📝 Recent Memories (%d)\n\n", len(memories))
	for _, m := range memories {
		flag := ""
		if m.Archived {
			flag = " [archived]"
		} else if m.Protected() {
			flag = " [protected]"
		}
		fmt.Printf("  [%s] %.2f%s %s\n", m.Type, m.Importance, flag, clip(m.Content, 120))
	}
}
