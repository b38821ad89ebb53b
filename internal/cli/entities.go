package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexmem/cortex/internal/model"
)

func init() {
	entitiesCmd := &cobra.Command{
		Use:   "entities",
		Short: "List known entities",
		Run:   runEntities,
	}
	entitiesCmd.Flags().StringP("type", "t", "", "Filter by entity type")

	addCmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create or merge an entity",
		Args:  cobra.MinimumNArgs(1),
		Run:   runEntityAdd,
	}
	addCmd.Flags().StringP("type", "t", "person", "Entity type: person, project, organization, tool, place, concept")
	addCmd.Flags().StringP("summary", "s", "", "Brief summary")
	addCmd.Flags().String("meta", "", "JSON metadata to merge")

	rmCmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete an entity",
		Args:  cobra.ExactArgs(1),
		Run:   runEntityRm,
	}

	entitiesCmd.AddCommand(addCmd, rmCmd)
	RootCmd.AddCommand(entitiesCmd)
}

func runEntities(cmd *cobra.Command, args []string) {
	entityType, _ := cmd.Flags().GetString("type")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	entities, err := s.ListEntities(cmd.Context(), entityType)
	if err != nil {
		exitErr("entities", err)
	}

	if jsonOut {
		printJSON(entities)
		return
	}
	if len(entities) == 0 {
		fmt.Println("No entities found.")
		return
	}
	fmt.Printf("👤 Entities (%d)\n\n", len(entities))
	for _, e := range entities {
		fmt.Printf("  [%s] %s\n", e.Type, e.Name)
		if e.Summary != "" {
			fmt.Printf("    %s\n", clip(e.Summary, 120))
		}
	}
}

func runEntityAdd(cmd *cobra.Command, args []string) {
	entityType, _ := cmd.Flags().GetString("type")
	summary, _ := cmd.Flags().GetString("summary")
	metaStr, _ := cmd.Flags().GetString("meta")

	meta := model.Metadata{}
	if metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			exitErr("parse --meta", err)
		}
	}

	cfg := loadConfig()
	ing, s, idx := openIngestor(cfg)
	defer s.Close()
	defer idx.Close()

	ent, err := ing.ResolveEntity(cmd.Context(), strings.Join(args, " "), entityType, summary, meta, "", "")
	if err != nil {
		exitErr("entities add", err)
	}
	fmt.Printf("✓ %s (%s): %s\n", ent.Name, ent.Type, ent.ID)
}

func runEntityRm(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	if err := s.DeleteEntity(cmd.Context(), args[0]); err != nil {
		exitErr("entities rm", err)
	}
	fmt.Printf("✓ Deleted %s\n", args[0])
}
