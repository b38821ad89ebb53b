package store

import (
	"context"
	"errors"
	"testing"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

func TestAddEntityAndCaseInsensitiveLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, err := s.AddEntity(ctx, "Sarah Chen", "person", "Works on the data team", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.GetEntityByName(ctx, "sarah chen")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != e.ID {
		t.Error("case-insensitive lookup returned wrong entity")
	}
	// The original casing is preserved.
	if got.Name != "Sarah Chen" {
		t.Errorf("name = %q", got.Name)
	}

	// Case-insensitive uniqueness: a same-name-different-case insert fails.
	if _, err := s.AddEntity(ctx, "SARAH CHEN", "person", "", nil); err == nil {
		t.Fatal("expected duplicate name rejection")
	}
}

func TestAddEntityValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AddEntity(ctx, "Widget", "gadget", "", nil); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.AddEntity(ctx, "", "person", "", nil); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
}

func TestMergeEntity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, _ := s.AddEntity(ctx, "atlas", "project", "old summary", model.Metadata{"a": float64(0), "b": float64(2)})

	merged, err := s.MergeEntity(ctx, e.ID, "new summary", model.Metadata{"a": float64(1)})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Summary != "new summary" {
		t.Errorf("summary = %q", merged.Summary)
	}
	// Shallow last-write-wins merge: incoming keys replace, others survive.
	if merged.Metadata["a"] != float64(1) {
		t.Errorf("a = %v, want 1", merged.Metadata["a"])
	}
	if merged.Metadata["b"] != float64(2) {
		t.Errorf("b = %v, want 2", merged.Metadata["b"])
	}
	// The merge is durable, not just the returned struct.
	stored, _ := s.GetEntityByName(ctx, "atlas")
	if stored.Metadata["a"] != float64(1) || stored.Metadata["b"] != float64(2) {
		t.Errorf("stored metadata = %v", stored.Metadata)
	}
}

func TestMergeEntityKeepsSummaryWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, _ := s.AddEntity(ctx, "atlas", "project", "existing", nil)
	merged, err := s.MergeEntity(ctx, e.ID, "", model.Metadata{"k": "v"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Summary != "existing" {
		t.Errorf("empty incoming summary must not clear the stored one, got %q", merged.Summary)
	}
}

func TestEntityMentionsCascadeOnMemoryDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, _ := s.AddEntity(ctx, "Sam", "person", "", nil)
	m, _ := s.AddMemory(ctx, AddMemoryParams{Content: "Sam mentioned the launch", Importance: 0.5})

	if _, err := s.AddEntityMention(ctx, e.ID, m.ID, "the launch"); err != nil {
		t.Fatalf("mention: %v", err)
	}

	if err := s.DeleteMemory(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entity_mentions`).Scan(&n); err != nil {
		t.Fatalf("count mentions: %v", err)
	}
	if n != 0 {
		t.Errorf("expected mentions removed with the memory, found %d", n)
	}
	// The entity itself survives.
	if _, err := s.GetEntityByName(ctx, "sam"); err != nil {
		t.Errorf("entity should survive memory deletion: %v", err)
	}
}

func TestListEntitiesByType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AddEntity(ctx, "Sarah", "person", "", nil)
	s.AddEntity(ctx, "atlas", "project", "", nil)

	people, err := s.ListEntities(ctx, "person")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(people) != 1 || people[0].Name != "Sarah" {
		t.Fatalf("type filter failed: %v", people)
	}

	all, _ := s.ListEntities(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(all))
	}
}
