package vector

import (
	"context"
	"testing"

	"github.com/cortexmem/cortex/internal/model"
)

func newTestIndex(t *testing.T) *ChromemIndex {
	t.Helper()
	idx, err := NewChromemIndex(t.TempDir(), "test_memories", LocalEmbeddingFunc(256))
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
	return idx
}

func TestQueryRanksSharedTokens(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	docs := map[string]string{
		"m1": "User prefers dark mode in every editor",
		"m2": "Lunch meeting moved to Thursday",
		"m3": "Deploy pipeline is green again",
	}
	for id, content := range docs {
		if err := idx.Upsert(ctx, id, content, model.Metadata{"memory_type": "observation"}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	results, err := idx.Query(ctx, "dark mode", 3, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].ID != "m1" {
		t.Errorf("top result = %s, want m1", results[0].ID)
	}
	if results[0].Metadata["memory_type"] != "observation" {
		t.Errorf("metadata lost: %v", results[0].Metadata)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not in ascending distance order")
		}
	}
}

func TestQueryMaxDistanceFilters(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	idx.Upsert(ctx, "m1", "favorite color is teal", nil)
	idx.Upsert(ctx, "m2", "quarterly report deadline", nil)

	all, err := idx.Query(ctx, "favorite color", 2, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 unfiltered results, got %d", len(all))
	}

	// Cut between the near hit and the far one.
	cutoff := (all[0].Distance + all[1].Distance) / 2
	near, err := idx.Query(ctx, "favorite color", 2, cutoff)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(near) != 1 || near[0].ID != "m1" {
		t.Fatalf("max distance filter kept %v", near)
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Query(context.Background(), "anything", 5, 0)
	if err != nil {
		t.Fatalf("query on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestQueryClampsK(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	idx.Upsert(ctx, "only", "a single record", nil)

	results, err := idx.Query(ctx, "record", 10, 0)
	if err != nil {
		t.Fatalf("query with k beyond count: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestUpsertReplacesAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	idx.Upsert(ctx, "m1", "first version", nil)
	idx.Upsert(ctx, "m1", "second version", nil)
	if idx.Count() != 1 {
		t.Fatalf("upsert should replace, count = %d", idx.Count())
	}
	if !idx.Has(ctx, "m1") {
		t.Fatal("expected record present")
	}

	if err := idx.Delete(ctx, "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if idx.Has(ctx, "m1") {
		t.Error("record present after delete")
	}
	if idx.Count() != 0 {
		t.Errorf("count = %d after delete", idx.Count())
	}
}

func TestLocalEmbeddingDeterministic(t *testing.T) {
	embed := LocalEmbeddingFunc(64)
	a, _ := embed(context.Background(), "same text")
	b, _ := embed(context.Background(), "same text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding is not deterministic")
		}
	}

	empty, err := embed(context.Background(), "")
	if err != nil {
		t.Fatalf("embed empty: %v", err)
	}
	var norm float32
	for _, v := range empty {
		norm += v * v
	}
	if norm == 0 {
		t.Error("empty text must not embed to the zero vector")
	}
}
