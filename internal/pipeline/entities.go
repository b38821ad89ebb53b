package pipeline

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

// SeedEntity is one entry of the optional seed_entities.yaml file.
type SeedEntity struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Summary  string         `yaml:"summary"`
	Metadata model.Metadata `yaml:"metadata"`
}

type seedFile struct {
	Entities []SeedEntity `yaml:"entities"`
}

// LoadSeedEntities reads the seed file. A missing file yields an empty
// list, not an error.
func LoadSeedEntities(path string) ([]SeedEntity, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return f.Entities, nil
}

// SeedEntities inserts every seed entity not already on record. Returns
// the number created.
func (in *Ingestor) SeedEntities(ctx context.Context, seeds []SeedEntity) (int, error) {
	created := 0
	for _, e := range seeds {
		if e.Name == "" {
			continue
		}
		_, err := in.store.GetEntityByName(ctx, e.Name)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return created, err
		}
		typ := e.Type
		if typ == "" {
			typ = "person"
		}
		if _, err := in.store.AddEntity(ctx, e.Name, typ, e.Summary, e.Metadata); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// ExtractEntityNames scans free text for known entities. The lookup table
// is keyed by each known entity's full lowercase name and by its lowercase
// first token when that token is longer than 2 characters, sourced from the
// seed list and from every entity on record. Any key occurring as a
// substring of the lowered input marks its entity found.
//
// This is deliberately naive substring matching; a first name that happens
// to be an ordinary word will false-positive. Results are deduplicated by
// canonical name and ordered longest name first (ties lexicographically)
// so output is deterministic.
func (in *Ingestor) ExtractEntityNames(ctx context.Context, text string, seeds []SeedEntity) ([]string, error) {
	known := map[string]string{}
	addName := func(name string) {
		if name == "" {
			return
		}
		lower := strings.ToLower(name)
		known[lower] = name
		first := strings.Fields(lower)
		if len(first) > 0 && len(first[0]) > 2 {
			known[first[0]] = name
		}
	}

	for _, e := range seeds {
		addName(e.Name)
	}
	entities, err := in.store.ListEntities(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		addName(e.Name)
	}

	textLower := strings.ToLower(text)
	seen := map[string]bool{}
	var found []string
	for key, name := range known {
		if strings.Contains(textLower, key) && !seen[name] {
			seen[name] = true
			found = append(found, name)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if len(found[i]) != len(found[j]) {
			return len(found[i]) > len(found[j])
		}
		return found[i] < found[j]
	})
	return found, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrNotFound)
}
