package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGetMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, err := s.AddMemory(ctx, AddMemoryParams{
		Content: "User prefers dark mode", Type: "observation", Source: "cli", Importance: 0.8,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.ID == "" {
		t.Error("expected non-empty ID")
	}

	got, err := s.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "User prefers dark mode" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Importance != 0.8 {
		t.Errorf("importance = %v", got.Importance)
	}
	if got.Archived {
		t.Error("new memory should not be archived")
	}
}

func TestAddMemoryValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddMemory(ctx, AddMemoryParams{Content: "x", Type: "daydream"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = s.AddMemory(ctx, AddMemoryParams{Type: "fact"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for empty content, got %v", err)
	}

	// Nothing should have been persisted by rejected inputs.
	mems, err := s.RecentMemories(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(mems) != 0 {
		t.Errorf("expected empty store, got %d rows", len(mems))
	}
}

func TestGetMemoryNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMemory(context.Background(), "nope")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListMemoriesExcludesArchived(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m1, _ := s.AddMemory(ctx, AddMemoryParams{Content: "keep me", Importance: 0.5})
	m2, _ := s.AddMemory(ctx, AddMemoryParams{Content: "archive me", Importance: 0.5})
	if err := s.ArchiveMemory(ctx, m2.ID, ""); err != nil {
		t.Fatalf("archive: %v", err)
	}

	active, err := s.ListMemories(ctx, ListMemoriesParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != m1.ID {
		t.Fatalf("expected only the active memory, got %d rows", len(active))
	}

	all, _ := s.ListMemories(ctx, ListMemoriesParams{IncludeArchived: true})
	if len(all) != 2 {
		t.Fatalf("expected 2 rows with archived included, got %d", len(all))
	}

	// Archived rows are retrievable by id.
	got, err := s.GetMemory(ctx, m2.ID)
	if err != nil {
		t.Fatalf("get archived: %v", err)
	}
	if !got.Archived {
		t.Error("expected archived flag set")
	}
}

func TestListMemoriesFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AddMemory(ctx, AddMemoryParams{Content: "a fact", Type: "fact", Importance: 0.9})
	s.AddMemory(ctx, AddMemoryParams{Content: "an observation", Type: "observation", Importance: 0.2})

	facts, _ := s.ListMemories(ctx, ListMemoriesParams{Type: "fact"})
	if len(facts) != 1 || facts[0].Type != "fact" {
		t.Fatalf("type filter failed: %v", facts)
	}

	min := 0.5
	important, _ := s.ListMemories(ctx, ListMemoriesParams{MinImportance: &min})
	if len(important) != 1 || important[0].Importance != 0.9 {
		t.Fatalf("importance filter failed: %v", important)
	}
}

func TestUpdateImportanceIf(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, _ := s.AddMemory(ctx, AddMemoryParams{Content: "x", Importance: 0.5})

	ok, err := s.UpdateImportanceIf(ctx, m.ID, 0.5, 0.475)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !ok {
		t.Fatal("expected guarded update to apply")
	}

	// Same expected value again: the row moved, the update must not apply.
	ok, err = s.UpdateImportanceIf(ctx, m.ID, 0.5, 0.475)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Fatal("stale guarded update should not apply")
	}

	got, _ := s.GetMemory(ctx, m.ID)
	if got.Importance != 0.475 {
		t.Errorf("importance = %v, want 0.475", got.Importance)
	}
}

func TestArchiveMemoryIf(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, _ := s.AddMemory(ctx, AddMemoryParams{Content: "fading", Importance: 0.1})

	ok, err := s.ArchiveMemoryIf(ctx, m.ID, 0.2)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if ok {
		t.Fatal("mismatched expectation should not archive")
	}

	ok, _ = s.ArchiveMemoryIf(ctx, m.ID, 0.1)
	if !ok {
		t.Fatal("expected archive to apply")
	}

	got, _ := s.GetMemory(ctx, m.ID)
	if !got.Archived {
		t.Error("expected archived")
	}
	// Importance stays at its prior value; archival does not re-score.
	if got.Importance != 0.1 {
		t.Errorf("importance = %v, want 0.1", got.Importance)
	}
}

func TestSetProtected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, _ := s.AddMemory(ctx, AddMemoryParams{
		Content: "name is Sam", Importance: 0.5,
		Metadata: model.Metadata{"origin": "profile"},
	})

	if err := s.SetProtected(ctx, m.ID, true); err != nil {
		t.Fatalf("protect: %v", err)
	}
	got, _ := s.GetMemory(ctx, m.ID)
	if !got.Protected() {
		t.Fatal("expected protected")
	}
	// Other metadata keys survive the flag edit.
	if got.Metadata["origin"] != "profile" {
		t.Errorf("metadata origin = %v", got.Metadata["origin"])
	}

	if err := s.SetProtected(ctx, m.ID, false); err != nil {
		t.Fatalf("unprotect: %v", err)
	}
	got, _ = s.GetMemory(ctx, m.ID)
	if got.Protected() {
		t.Error("expected unprotected")
	}
}

func TestDeleteMemoriesByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AddMemory(ctx, AddMemoryParams{Content: "temp: scratch one", Importance: 0.5})
	s.AddMemory(ctx, AddMemoryParams{Content: "temp: scratch two", Importance: 0.5})
	keep, _ := s.AddMemory(ctx, AddMemoryParams{Content: "keep this", Importance: 0.5})

	ids, err := s.DeleteMemoriesByPrefix(ctx, "temp:")
	if err != nil {
		t.Fatalf("delete by prefix: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 deleted, got %d", len(ids))
	}

	left, _ := s.RecentMemories(ctx, 10)
	if len(left) != 1 || left[0].ID != keep.ID {
		t.Fatalf("expected only the kept memory to remain")
	}
}

func TestDecayFactorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	df := 0.5
	m, _ := s.AddMemory(ctx, AddMemoryParams{Content: "ephemeral", Importance: 0.5, DecayFactor: &df})

	got, _ := s.GetMemory(ctx, m.ID)
	if got.DecayFactor == nil || *got.DecayFactor != 0.5 {
		t.Fatalf("decay factor = %v", got.DecayFactor)
	}

	plain, _ := s.AddMemory(ctx, AddMemoryParams{Content: "ordinary", Importance: 0.5})
	got, _ = s.GetMemory(ctx, plain.ID)
	if got.DecayFactor != nil {
		t.Fatalf("expected nil decay factor, got %v", *got.DecayFactor)
	}
}
