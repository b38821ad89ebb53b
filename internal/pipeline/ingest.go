// Package pipeline implements ingestion, entity resolution, memory decay,
// and the store/mirror reconciliation sweep.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
	"github.com/cortexmem/cortex/internal/store"
	"github.com/cortexmem/cortex/internal/vector"
)

// Ingestor writes memories to the record store and mirrors them into the
// vector index. The two writes are separate commits: a mirror failure after
// the record commit leaves the memory durable but unsearchable, which is
// accepted rather than rolled back.
type Ingestor struct {
	store *store.SQLiteStore
	index vector.Index
	log   *logrus.Entry
}

// NewIngestor creates an ingestor over the given store and mirror.
func NewIngestor(s *store.SQLiteStore, idx vector.Index, log *logrus.Entry) *Ingestor {
	return &Ingestor{store: s, index: idx, log: log}
}

// IngestMemory stores a memory and mirrors it. On a mirror failure the
// returned memory is still non-nil and committed; the error reports the
// consistency gap to the caller.
func (in *Ingestor) IngestMemory(ctx context.Context, p store.AddMemoryParams) (*model.Memory, error) {
	m, err := in.store.AddMemory(ctx, p)
	if err != nil {
		return nil, err
	}

	meta := model.Metadata{
		"memory_type": m.Type,
		"importance":  m.Importance,
		"source":      m.Source,
	}
	if err := in.index.Upsert(ctx, m.ID, m.Content, meta); err != nil {
		in.log.WithFields(logrus.Fields{"memory_id": m.ID, "error": err}).
			Warn("memory committed but mirror write failed; record is unsearchable until reconciled")
		return m, fmt.Errorf("%w: mirror write for %s: %v", errs.ErrExternal, m.ID, err)
	}
	return m, nil
}

// DeleteMemory removes the memory row, its mentions, and its mirror
// record. A mirror failure after the relational delete leaves an orphan
// mirror record, the same asymmetry as ingestion.
func (in *Ingestor) DeleteMemory(ctx context.Context, id string) error {
	if err := in.store.DeleteMemory(ctx, id); err != nil {
		return err
	}
	if err := in.index.Delete(ctx, id); err != nil {
		in.log.WithFields(logrus.Fields{"memory_id": id, "error": err}).
			Warn("memory deleted but mirror record remains")
		return fmt.Errorf("%w: mirror delete for %s: %v", errs.ErrExternal, id, err)
	}
	return nil
}

// DeleteByPrefix removes every memory whose content starts with prefix,
// cleaning up mirror records per id. Returns the number deleted.
func (in *Ingestor) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	ids, err := in.store.DeleteMemoriesByPrefix(ctx, prefix)
	if err != nil {
		return len(ids), err
	}
	for _, id := range ids {
		if err := in.index.Delete(ctx, id); err != nil {
			in.log.WithField("memory_id", id).Warn("mirror record left behind by prefix delete")
		}
	}
	return len(ids), nil
}

// ResolveEntity performs case-insensitive lookup/merge: an existing entity
// absorbs a non-empty incoming summary and incoming metadata keys; a new
// one is inserted otherwise. When memoryID is set, a mention linking the
// entity to that memory is recorded.
func (in *Ingestor) ResolveEntity(ctx context.Context, name, entityType, summary string, metadata model.Metadata, memoryID, mentionContext string) (*model.Entity, error) {
	e, err := in.store.GetEntityByName(ctx, name)
	switch {
	case err == nil:
		if summary != "" || len(metadata) > 0 {
			e, err = in.store.MergeEntity(ctx, e.ID, summary, metadata)
			if err != nil {
				return nil, err
			}
		}
	case isNotFound(err):
		e, err = in.store.AddEntity(ctx, name, entityType, summary, metadata)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if memoryID != "" {
		if _, err := in.store.AddEntityMention(ctx, e.ID, memoryID, mentionContext); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Message is one turn of a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IngestResult reports what a conversation ingest created.
type IngestResult struct {
	ConversationID string   `json:"conversation_id"`
	MemoryIDs      []string `json:"memory_ids"`
}

// minIngestLen filters out trivial exchanges; shorter user messages carry
// no recall value.
const minIngestLen = 20

// IngestConversation opens a conversation and stores each substantial user
// message as a conversation memory.
func (in *Ingestor) IngestConversation(ctx context.Context, messages []Message, sessionKey, channel string) (*IngestResult, error) {
	conv, err := in.store.StartConversation(ctx, sessionKey, channel)
	if err != nil {
		return nil, err
	}

	res := &IngestResult{ConversationID: conv.ID, MemoryIDs: []string{}}
	for _, msg := range messages {
		if msg.Role != "user" || len(msg.Content) <= minIngestLen {
			continue
		}
		m, err := in.IngestMemory(ctx, store.AddMemoryParams{
			Content:    msg.Content,
			Type:       "conversation",
			Source:     "conversation:" + conv.ID,
			Importance: 0.5,
			Metadata:   model.Metadata{"role": msg.Role, "channel": channel},
		})
		if err != nil && m == nil {
			return res, err
		}
		res.MemoryIDs = append(res.MemoryIDs, m.ID)
	}
	return res, nil
}
