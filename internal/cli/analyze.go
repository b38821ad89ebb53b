package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run post-session analysis",
		Long:  "Distill a conversation into a prepared context for the next session. Provide the transcript via --text or --file.",
		Run:   runAnalyze,
	}

	cmd.Flags().String("text", "", "Conversation text")
	cmd.Flags().StringP("file", "f", "", "File with conversation text")
	cmd.Flags().String("conversation-id", "", "Conversation id to link")

	RootCmd.AddCommand(cmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	text, _ := cmd.Flags().GetString("text")
	file, _ := cmd.Flags().GetString("file")
	convID, _ := cmd.Flags().GetString("conversation-id")

	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			exitErr("read file", err)
		}
		text = string(b)
	}
	if text == "" {
		exitErr("analyze", fmt.Errorf("provide --text or --file"))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	an := newAnalyzer(cfg, s)
	fmt.Println("🔄 Running analysis...")
	res, err := an.Run(cmd.Context(), text, convID)
	if err != nil {
		exitErr("analyze", err)
	}

	if jsonOut {
		printJSON(res)
		return
	}
	fmt.Printf("✓ Context ID: %s\n\n%s\n", res.ContextID, res.PreparedPrompt)
}
