package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Semantic search across memories",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("limit", "n", 5, "Max results")
	cmd.Flags().Float64("max-distance", 0, "Drop results farther than this distance")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	maxDist, _ := cmd.Flags().GetFloat64("max-distance")
	query := strings.Join(args, " ")

	cfg := loadConfig()
	idx := openIndex(cfg)
	defer idx.Close()

	results, err := idx.Query(cmd.Context(), query, limit, maxDist)
	if err != nil {
		exitErr("search", err)
	}

	if jsonOut {
		printJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("No memories found.")
		return
	}
	fmt.Printf("🔍 %q — %d results\n\n", query, len(results))
	for i, r := range results {
		mtype := r.Metadata["memory_type"]
		if mtype == "" {
			mtype = "?"
		}
		fmt.Printf("  %d. [%s] (%.3f)\n     %s\n\n", i+1, mtype, r.Distance, clip(r.Content, 150))
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
