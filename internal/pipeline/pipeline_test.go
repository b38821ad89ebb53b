package pipeline

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
	"github.com/cortexmem/cortex/internal/store"
	"github.com/cortexmem/cortex/internal/vector"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestIngestor(t *testing.T) (*Ingestor, *store.SQLiteStore, vector.Index) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	idx, err := vector.NewChromemIndex(t.TempDir(), "test_memories", vector.LocalEmbeddingFunc(128))
	require.NoError(t, err)

	return NewIngestor(s, idx, testLog()), s, idx
}

// failingIndex wraps a real index but rejects every mirror write.
type failingIndex struct {
	vector.Index
}

func (f *failingIndex) Upsert(ctx context.Context, id, content string, metadata model.Metadata) error {
	return errors.New("mirror unavailable")
}

func TestIngestMemoryDualWrite(t *testing.T) {
	ctx := context.Background()
	ing, s, idx := newTestIngestor(t)

	m, err := ing.IngestMemory(ctx, store.AddMemoryParams{
		Content: "User prefers dark mode", Type: "observation", Source: "cli", Importance: 0.8,
	})
	require.NoError(t, err)

	// Both sides hold the record.
	stored, err := s.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "User prefers dark mode", stored.Content)
	assert.True(t, idx.Has(ctx, m.ID))

	// The mirror carries the flattened indexing metadata.
	results, err := idx.Query(ctx, "dark mode", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, m.ID, results[0].ID)
	assert.Equal(t, "observation", results[0].Metadata["memory_type"])
	assert.Equal(t, "cli", results[0].Metadata["source"])
}

func TestIngestMemoryMirrorFailure(t *testing.T) {
	ctx := context.Background()
	_, s, idx := newTestIngestor(t)
	ing := NewIngestor(s, &failingIndex{Index: idx}, testLog())

	m, err := ing.IngestMemory(ctx, store.AddMemoryParams{Content: "durable anyway", Importance: 0.5})

	// The record commit survives the mirror failure.
	require.NotNil(t, m)
	require.ErrorIs(t, err, errs.ErrExternal)
	stored, gerr := s.GetMemory(ctx, m.ID)
	require.NoError(t, gerr)
	assert.Equal(t, "durable anyway", stored.Content)
	assert.False(t, idx.Has(ctx, m.ID))
}

func TestIngestMemoryValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	ing, s, idx := newTestIngestor(t)

	m, err := ing.IngestMemory(ctx, store.AddMemoryParams{Content: "bad", Type: "nonsense"})
	assert.Nil(t, m)
	require.ErrorIs(t, err, errs.ErrValidation)

	mems, _ := s.RecentMemories(ctx, 10)
	assert.Empty(t, mems)
	assert.Zero(t, idx.Count())
}

func TestDeleteMemoryRemovesMirror(t *testing.T) {
	ctx := context.Background()
	ing, s, idx := newTestIngestor(t)

	m, err := ing.IngestMemory(ctx, store.AddMemoryParams{Content: "short lived", Importance: 0.5})
	require.NoError(t, err)

	require.NoError(t, ing.DeleteMemory(ctx, m.ID))
	_, err = s.GetMemory(ctx, m.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.False(t, idx.Has(ctx, m.ID))
}

func TestDeleteByPrefixCleansMirror(t *testing.T) {
	ctx := context.Background()
	ing, _, idx := newTestIngestor(t)

	ing.IngestMemory(ctx, store.AddMemoryParams{Content: "scratch: one", Importance: 0.5})
	ing.IngestMemory(ctx, store.AddMemoryParams{Content: "scratch: two", Importance: 0.5})
	keep, err := ing.IngestMemory(ctx, store.AddMemoryParams{Content: "permanent note", Importance: 0.5})
	require.NoError(t, err)

	n, err := ing.DeleteByPrefix(ctx, "scratch:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, idx.Count())
	assert.True(t, idx.Has(ctx, keep.ID))
}

func TestResolveEntityMergesExisting(t *testing.T) {
	ctx := context.Background()
	ing, s, _ := newTestIngestor(t)

	first, err := ing.ResolveEntity(ctx, "Sarah Chen", "person", "data team", model.Metadata{"team": "data"}, "", "")
	require.NoError(t, err)

	// Same name, different case: merge rather than insert.
	second, err := ing.ResolveEntity(ctx, "sarah chen", "person", "promoted to lead", model.Metadata{"role": "lead"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "promoted to lead", second.Summary)
	assert.Equal(t, "data", second.Metadata["team"])
	assert.Equal(t, "lead", second.Metadata["role"])

	all, _ := s.ListEntities(ctx, "")
	assert.Len(t, all, 1)
}

func TestResolveEntityRecordsMention(t *testing.T) {
	ctx := context.Background()
	ing, s, _ := newTestIngestor(t)

	m, err := ing.IngestMemory(ctx, store.AddMemoryParams{Content: "Sarah shipped the migration", Importance: 0.5})
	require.NoError(t, err)

	_, err = ing.ResolveEntity(ctx, "Sarah", "person", "", nil, m.ID, "shipped the migration")
	require.NoError(t, err)

	// Deleting the memory cascades the mention but keeps the entity.
	require.NoError(t, ing.DeleteMemory(ctx, m.ID))
	ent, err := s.GetEntityByName(ctx, "sarah")
	require.NoError(t, err)
	assert.Equal(t, "Sarah", ent.Name)
}

func TestIngestConversation(t *testing.T) {
	ctx := context.Background()
	ing, s, _ := newTestIngestor(t)

	res, err := ing.IngestConversation(ctx, []Message{
		{Role: "user", Content: "I want to migrate the billing service to the new queue"},
		{Role: "assistant", Content: "Sure, here is a long detailed plan for the migration work"},
		{Role: "user", Content: "thanks"},
	}, "sess-9", "discord")
	require.NoError(t, err)
	require.NotEmpty(t, res.ConversationID)

	// Only the substantial user message becomes a memory.
	require.Len(t, res.MemoryIDs, 1)
	m, err := s.GetMemory(ctx, res.MemoryIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "conversation", m.Type)
	assert.Equal(t, "conversation:"+res.ConversationID, m.Source)
	assert.Equal(t, "user", m.Metadata["role"])
	assert.Equal(t, "discord", m.Metadata["channel"])

	conv, err := s.GetConversation(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "sess-9", conv.SessionKey)
}
