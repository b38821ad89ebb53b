package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

func saveTestContext(t *testing.T, s *SQLiteStore, prompt string) *model.PreparedContext {
	t.Helper()
	ctx := context.Background()
	conv, err := s.StartConversation(ctx, "test", "cli")
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	pc, err := s.SavePreparedContext(ctx, SaveContextParams{
		ConversationID: conv.ID,
		ContextSummary: "left off mid-migration",
		OpenLoops:      []model.LoopSnapshot{{Summary: "finish migration", Priority: "high"}},
		PreparedPrompt: prompt,
	})
	if err != nil {
		t.Fatalf("save context: %v", err)
	}
	return pc
}

func TestSavePreparedContextRequiresConversation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SavePreparedContext(context.Background(), SaveContextParams{PreparedPrompt: "x"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestActiveContextReturnsNewestPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older := saveTestContext(t, s, "older")
	newer := saveTestContext(t, s, "newer")
	s.db.ExecContext(ctx, `UPDATE prepared_contexts SET created_at = ? WHERE id = ?`,
		fmtTime(time.Now().Add(-time.Minute)), older.ID)

	pc, err := s.ActiveContext(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if pc == nil || pc.ID != newer.ID {
		t.Fatalf("expected newest pending context, got %+v", pc)
	}
	if len(pc.OpenLoops) != 1 || pc.OpenLoops[0].Summary != "finish migration" {
		t.Errorf("loop snapshots did not round-trip: %+v", pc.OpenLoops)
	}
}

func TestActiveContextSkipsExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pc := saveTestContext(t, s, "stale")
	// Push expiry into the past directly; expiry is computed at read time,
	// never written as a state transition.
	_, err := s.db.ExecContext(ctx, `UPDATE prepared_contexts SET expires_at = ? WHERE id = ?`,
		fmtTime(time.Now().Add(-time.Hour)), pc.ID)
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}

	got, err := s.ActiveContext(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if got != nil {
		t.Fatalf("expired context must not be returned, got %s", got.ID)
	}

	// The row itself is untouched.
	var usedAt any
	if err := s.db.QueryRowContext(ctx, `SELECT used_at FROM prepared_contexts WHERE id = ?`, pc.ID).Scan(&usedAt); err != nil {
		t.Fatalf("row gone: %v", err)
	}
	if usedAt != nil {
		t.Error("expiry must not write used_at")
	}
}

func TestMarkContextUsedOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pc := saveTestContext(t, s, "claim me")

	ok, err := s.MarkContextUsed(ctx, pc.ID)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !ok {
		t.Fatal("first claim should succeed")
	}

	ok, err = s.MarkContextUsed(ctx, pc.ID)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if ok {
		t.Fatal("second claim must lose")
	}

	// A used context is no longer pending.
	got, _ := s.ActiveContext(ctx)
	if got != nil {
		t.Fatalf("used context returned as active: %s", got.ID)
	}
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.StartConversation(ctx, "sess-1", "discord")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conv.Analyzed {
		t.Error("new conversation should not be analyzed")
	}

	if err := s.EndConversation(ctx, conv.ID, "talked about the launch"); err != nil {
		t.Fatalf("end: %v", err)
	}

	pending, err := s.UnanalyzedConversations(ctx)
	if err != nil {
		t.Fatalf("unanalyzed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != conv.ID {
		t.Fatalf("expected the ended conversation pending analysis, got %v", pending)
	}
	if pending[0].Summary != "talked about the launch" {
		t.Errorf("summary = %q", pending[0].Summary)
	}

	if err := s.MarkAnalyzed(ctx, conv.ID); err != nil {
		t.Fatalf("mark analyzed: %v", err)
	}
	pending, _ = s.UnanalyzedConversations(ctx)
	if len(pending) != 0 {
		t.Errorf("analyzed conversation still pending")
	}
}
