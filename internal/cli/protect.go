package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	protectCmd := &cobra.Command{
		Use:   "protect [id]",
		Short: "Exempt a memory from decay and archival",
		Args:  cobra.ExactArgs(1),
		Run:   runProtect(true),
	}
	unprotectCmd := &cobra.Command{
		Use:   "unprotect [id]",
		Short: "Make a memory subject to decay again",
		Args:  cobra.ExactArgs(1),
		Run:   runProtect(false),
	}
	RootCmd.AddCommand(protectCmd, unprotectCmd)
}

func runProtect(protected bool) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		s := openStore(cfg)
		defer s.Close()

		if err := s.SetProtected(cmd.Context(), args[0], protected); err != nil {
			exitErr("protect", err)
		}
		if protected {
			fmt.Printf("✓ %s is now protected\n", args[0])
		} else {
			fmt.Printf("✓ %s is no longer protected\n", args[0])
		}
	}
}
