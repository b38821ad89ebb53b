package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
)

// SaveContextParams holds a prepared context ready for persistence.
type SaveContextParams struct {
	ConversationID   string
	ContextSummary   string
	OpenLoops        []model.LoopSnapshot
	SelectedMemories []model.MemorySnapshot
	TopicIndex       string
	PriorityTopics   string
	PreparedPrompt   string
	TTLDays          int
}

// SavePreparedContext persists a prepared context with its TTL.
func (s *SQLiteStore) SavePreparedContext(ctx context.Context, p SaveContextParams) (*model.PreparedContext, error) {
	if p.ConversationID == "" {
		return nil, errs.Validationf("prepared context requires a conversation id")
	}
	if p.TTLDays <= 0 {
		p.TTLDays = 7
	}

	now := time.Now()
	pc := &model.PreparedContext{
		ID:               s.newID(),
		ConversationID:   p.ConversationID,
		ContextSummary:   p.ContextSummary,
		OpenLoops:        p.OpenLoops,
		SelectedMemories: p.SelectedMemories,
		TopicIndex:       p.TopicIndex,
		PriorityTopics:   p.PriorityTopics,
		PreparedPrompt:   p.PreparedPrompt,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(p.TTLDays) * 24 * time.Hour),
	}

	loopsJSON, _ := json.Marshal(pc.OpenLoops)
	memsJSON, _ := json.Marshal(pc.SelectedMemories)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prepared_contexts
		 (id, conversation_id, context_summary, open_loops_json, selected_memories_json, topic_index, priority_topics, prepared_prompt, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pc.ID, pc.ConversationID, pc.ContextSummary, string(loopsJSON), string(memsJSON),
		pc.TopicIndex, pc.PriorityTopics, pc.PreparedPrompt, fmtTime(pc.CreatedAt), fmtTime(pc.ExpiresAt))
	if err != nil {
		return nil, errs.Wrap("save prepared context", err)
	}
	return pc, nil
}

// ActiveContext returns the most recently created pending prepared context,
// or nil when none exists. Pending is derived through model.StateOf; rows
// whose state has drifted to Expired are never returned even though the
// transition is not stored.
func (s *SQLiteStore) ActiveContext(ctx context.Context) (*model.PreparedContext, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contextColumns+` FROM prepared_contexts
		 WHERE used_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, errs.Wrap("active context", err)
	}
	defer rows.Close()

	now := time.Now()
	for rows.Next() {
		pc, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		if model.StateOf(now, pc.ExpiresAt, pc.UsedAt) == model.ContextPending {
			return pc, nil
		}
	}
	return nil, rows.Err()
}

// MarkContextUsed transitions a pending context to used. The update is
// conditional on used_at still being absent, so two concurrent consumers
// cannot both claim the same record; the loser sees false.
func (s *SQLiteStore) MarkContextUsed(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prepared_contexts SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		fmtTime(time.Now()), id)
	if err != nil {
		return false, errs.Wrap("mark context used", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

const contextColumns = `id, conversation_id, context_summary, open_loops_json, selected_memories_json, topic_index, priority_topics, prepared_prompt, created_at, expires_at, used_at`

func scanContext(row scanner) (*model.PreparedContext, error) {
	var pc model.PreparedContext
	var summary, loopsJSON, memsJSON, topicIndex, priorityTopics, prompt, usedAt sql.NullString
	var createdAt, expiresAt string

	err := row.Scan(&pc.ID, &pc.ConversationID, &summary, &loopsJSON, &memsJSON,
		&topicIndex, &priorityTopics, &prompt, &createdAt, &expiresAt, &usedAt)
	if err != nil {
		return nil, err
	}

	pc.ContextSummary = summary.String
	pc.TopicIndex = topicIndex.String
	pc.PriorityTopics = priorityTopics.String
	pc.PreparedPrompt = prompt.String
	pc.CreatedAt = parseTime(createdAt)
	pc.ExpiresAt = parseTime(expiresAt)
	if usedAt.Valid {
		t := parseTime(usedAt.String)
		pc.UsedAt = &t
	}
	if loopsJSON.Valid && loopsJSON.String != "" {
		json.Unmarshal([]byte(loopsJSON.String), &pc.OpenLoops)
	}
	if memsJSON.Valid && memsJSON.String != "" {
		json.Unmarshal([]byte(memsJSON.String), &pc.SelectedMemories)
	}
	return &pc, nil
}
