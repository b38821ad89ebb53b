// Package model defines the core memory data types.
package model

import "time"

// Memory is a timestamped unit of recalled information.
type Memory struct {
	ID               string    `json:"id"`
	Content          string    `json:"content"`
	Type             string    `json:"memory_type"`
	Source           string    `json:"source,omitempty"`
	Importance       float64   `json:"importance"`
	DecayFactor      *float64  `json:"decay_factor,omitempty"`
	Metadata         Metadata  `json:"metadata,omitempty"`
	Archived         bool      `json:"archived"`
	ConsolidatedInto string    `json:"consolidated_into,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Protected reports whether the memory is exempt from decay and archival.
func (m *Memory) Protected() bool {
	v, ok := m.Metadata["protected"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Entity is a named person, project, organization, tool, place, or concept.
// Names are unique case-insensitively.
type Entity struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"entity_type"`
	Summary        string    `json:"summary,omitempty"`
	Metadata       Metadata  `json:"metadata,omitempty"`
	LastReferenced time.Time `json:"last_referenced"`
}

// EntityMention links an entity to a memory that mentions it.
type EntityMention struct {
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`
	MemoryID string `json:"memory_id"`
	Context  string `json:"context,omitempty"`
}

// OpenLoop is an unresolved conversational thread to revisit later.
type OpenLoop struct {
	ID               string     `json:"id"`
	Summary          string     `json:"summary"`
	Priority         string     `json:"priority"`
	FollowUpQuestion string     `json:"follow_up_question,omitempty"`
	SourceMemoryID   string     `json:"source_memory_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// Conversation is one assistant session.
type Conversation struct {
	ID         string     `json:"id"`
	SessionKey string     `json:"session_key,omitempty"`
	Channel    string     `json:"channel,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Summary    string     `json:"summary,omitempty"`
	Analyzed   bool       `json:"analyzed"`
}

// PreparedContext is a curated continuity payload consumed at most once
// per session start.
type PreparedContext struct {
	ID               string           `json:"id"`
	ConversationID   string           `json:"conversation_id"`
	ContextSummary   string           `json:"context_summary"`
	OpenLoops        []LoopSnapshot   `json:"open_loops"`
	SelectedMemories []MemorySnapshot `json:"selected_memories"`
	TopicIndex       string           `json:"topic_index,omitempty"`
	PriorityTopics   string           `json:"priority_topics,omitempty"`
	PreparedPrompt   string           `json:"prepared_prompt"`
	CreatedAt        time.Time        `json:"created_at"`
	ExpiresAt        time.Time        `json:"expires_at"`
	UsedAt           *time.Time       `json:"used_at,omitempty"`
}

// LoopSnapshot is an open loop as captured inside a prepared context.
type LoopSnapshot struct {
	Summary          string `json:"summary"`
	Priority         string `json:"priority"`
	FollowUpQuestion string `json:"follow_up_question,omitempty"`
}

// MemorySnapshot is a memory selected for continuity, with the reason it
// was selected.
type MemorySnapshot struct {
	Content string `json:"content"`
	Reason  string `json:"reason,omitempty"`
}

// ContextState is the read-time state of a prepared context.
type ContextState string

const (
	ContextPending ContextState = "pending"
	ContextUsed    ContextState = "used"
	ContextExpired ContextState = "expired"
)

// StateOf computes the handoff state of a prepared context at the given
// time. Expired is never stored; every caller derives it through this one
// function so expiry checks cannot drift apart.
func StateOf(now time.Time, expiresAt time.Time, usedAt *time.Time) ContextState {
	if usedAt != nil {
		return ContextUsed
	}
	if !now.Before(expiresAt) {
		return ContextExpired
	}
	return ContextPending
}

// ValidMemoryTypes are the allowed memory types.
var ValidMemoryTypes = map[string]bool{
	"conversation": true,
	"observation":  true,
	"decision":     true,
	"personality":  true,
	"action_item":  true,
	"fact":         true,
}

// ValidEntityTypes are the allowed entity types.
var ValidEntityTypes = map[string]bool{
	"person":       true,
	"project":      true,
	"organization": true,
	"tool":         true,
	"place":        true,
	"concept":      true,
}

// ValidPriorities are the allowed open-loop priority levels.
var ValidPriorities = map[string]bool{
	"high":   true,
	"medium": true,
	"low":    true,
}

// PriorityRank orders priorities for unresolved-loop listings, high first.
func PriorityRank(p string) int {
	switch p {
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	}
	return 4
}
