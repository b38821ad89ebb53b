package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/model"
	"github.com/cortexmem/cortex/internal/pipeline"
	"github.com/cortexmem/cortex/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin.",
		Run:   runRemember,
	}

	cmd.Flags().StringP("type", "t", "observation", "Memory type: conversation, observation, decision, personality, action_item, fact")
	cmd.Flags().StringP("source", "s", "cli", "Where the memory came from")
	cmd.Flags().Float64P("importance", "i", 0.5, "Initial importance (0..1)")
	cmd.Flags().Float64("decay-factor", 0, "Per-memory decay rate override")
	cmd.Flags().String("meta", "", "JSON metadata")
	cmd.Flags().Bool("protect", false, "Exempt from decay and archival")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	memType, _ := cmd.Flags().GetString("type")
	source, _ := cmd.Flags().GetString("source")
	importance, _ := cmd.Flags().GetFloat64("importance")
	metaStr, _ := cmd.Flags().GetString("meta")
	protect, _ := cmd.Flags().GetBool("protect")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		exitErr("remember", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	meta := model.Metadata{}
	if metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			exitErr("parse --meta", err)
		}
	}
	if protect {
		meta["protected"] = true
	}

	var decayFactor *float64
	if cmd.Flags().Changed("decay-factor") {
		v, _ := cmd.Flags().GetFloat64("decay-factor")
		decayFactor = &v
	}

	cfg := loadConfig()
	ing, s, idx := openIngestor(cfg)
	defer s.Close()
	defer idx.Close()

	mem, err := ing.IngestMemory(cmd.Context(), store.AddMemoryParams{
		Content:     content,
		Type:        memType,
		Source:      source,
		Importance:  importance,
		DecayFactor: decayFactor,
		Metadata:    meta,
	})
	if err != nil && mem == nil {
		exitErr("remember", err)
	}

	if jsonOut {
		printJSON(mem)
		return
	}
	fmt.Printf("✓ Stored: %s (%s, importance %.2f)\n", mem.ID, mem.Type, mem.Importance)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: vector mirror write failed; memory is stored but unsearchable")
	}

	seeds, _ := pipeline.LoadSeedEntities(cfg.SeedEntitiesPath())
	names, err := ing.ExtractEntityNames(cmd.Context(), content, seeds)
	if err == nil && len(names) > 0 {
		fmt.Printf("  Entities detected: %s\n", strings.Join(names, ", "))
	}
}
