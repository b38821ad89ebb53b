package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a memory",
		Long:  "Delete a memory by id, or every memory whose content starts with --prefix. Removes the vector mirror record too.",
		Run:   runRm,
	}

	cmd.Flags().String("prefix", "", "Delete all memories whose content starts with this prefix")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	prefix, _ := cmd.Flags().GetString("prefix")
	if len(args) == 0 && prefix == "" {
		exitErr("rm", fmt.Errorf("provide a memory id or --prefix"))
	}

	cfg := loadConfig()
	ing, s, idx := openIngestor(cfg)
	defer s.Close()
	defer idx.Close()

	if prefix != "" {
		n, err := ing.DeleteByPrefix(cmd.Context(), prefix)
		if err != nil {
			exitErr("rm", err)
		}
		fmt.Printf("✓ Deleted %d memories with prefix %q\n", n, prefix)
		return
	}

	if err := ing.DeleteMemory(cmd.Context(), args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf("✓ Deleted %s\n", args[0])
}
