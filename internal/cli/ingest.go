package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a conversation transcript",
		Long:  "Read a JSON array of {role, content} messages from a file or stdin and store substantive user messages as conversation memories.",
		Run:   runIngest,
	}

	cmd.Flags().StringP("file", "f", "", "JSON messages file (default: stdin)")
	cmd.Flags().String("session", "", "Session key")
	cmd.Flags().String("channel", "cli", "Channel the conversation came from")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")
	session, _ := cmd.Flags().GetString("session")
	channel, _ := cmd.Flags().GetString("channel")

	var b []byte
	var err error
	if file != "" {
		b, err = os.ReadFile(file)
	} else {
		b, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read messages", err)
	}

	var messages []pipeline.Message
	if err := json.Unmarshal(b, &messages); err != nil {
		exitErr("parse messages", err)
	}

	cfg := loadConfig()
	ing, s, idx := openIngestor(cfg)
	defer s.Close()
	defer idx.Close()

	res, err := ing.IngestConversation(cmd.Context(), messages, session, channel)
	if err != nil {
		exitErr("ingest", err)
	}

	if jsonOut {
		printJSON(res)
		return
	}
	fmt.Printf("✓ Conversation %s: %d memories stored\n", res.ConversationID, len(res.MemoryIDs))
}
