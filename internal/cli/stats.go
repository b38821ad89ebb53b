package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory system statistics",
		Run:   runStats,
	}
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	idx := openIndex(cfg)
	defer idx.Close()

	st, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	st.VectorCount = idx.Count()

	if jsonOut {
		printJSON(st)
		return
	}
	fmt.Println("🧠 Cortex Memory")
	fmt.Printf("  Memories (active)   %d\n", st.ActiveMemories)
	fmt.Printf("  Memories (total)    %d\n", st.Memories)
	fmt.Printf("  Entities            %d\n", st.Entities)
	fmt.Printf("  Open Loops          %d\n", st.ActiveLoops)
	fmt.Printf("  Conversations       %d\n", st.Conversations)
	fmt.Printf("  Prepared Contexts   %d\n", st.PreparedContexts)
	fmt.Printf("  Vector Embeddings   %d\n", st.VectorCount)
	if len(st.MemoryTypes) > 0 {
		fmt.Println("  By type:")
		for t, n := range st.MemoryTypes {
			fmt.Printf("    %-14s %d\n", t, n)
		}
	}
}
