package contextgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cortexmem/cortex/internal/config"
	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/store"
)

// Handoff delivers prepared contexts to session starts.
type Handoff struct {
	store       *store.SQLiteStore
	maxLoops    int
	maxMemories int
	log         *logrus.Entry
}

// NewHandoff wires the handoff side over the store. The config's context
// limits bound the synthesized fallback.
func NewHandoff(s *store.SQLiteStore, cfg *config.Config, log *logrus.Entry) *Handoff {
	h := &Handoff{store: s, maxLoops: 5, maxMemories: 10, log: log}
	if cfg != nil {
		if cfg.Context.MaxOpenLoops > 0 {
			h.maxLoops = cfg.Context.MaxOpenLoops
		}
		if cfg.Context.MaxMemories > 0 {
			h.maxMemories = cfg.Context.MaxMemories
		}
	}
	return h
}

// Injection is the payload a session start receives.
type Injection struct {
	Prompt string `json:"prompt"`
	// Source is "prepared" or "fallback".
	Source    string `json:"source"`
	ContextID string `json:"context_id,omitempty"`
}

// Get returns the context to inject. When a pending prepared context
// exists it is consumed at most once: the claim is a conditional update,
// and losing the claim to a concurrent reader moves on to the next pending
// record. Peek returns the content without consuming. With nothing pending,
// fallback assembles a degraded view from raw loops and recent memories;
// without fallback the caller gets ErrState.
func (h *Handoff) Get(ctx context.Context, peek, fallback bool) (*Injection, error) {
	for {
		pc, err := h.store.ActiveContext(ctx)
		if err != nil {
			return nil, err
		}
		if pc == nil {
			break
		}
		if peek {
			return &Injection{Prompt: pc.PreparedPrompt, Source: "prepared", ContextID: pc.ID}, nil
		}
		claimed, err := h.store.MarkContextUsed(ctx, pc.ID)
		if err != nil {
			return nil, err
		}
		if claimed {
			return &Injection{Prompt: pc.PreparedPrompt, Source: "prepared", ContextID: pc.ID}, nil
		}
		// Lost the claim to a concurrent consumer; try the next pending one.
		h.log.WithField("context_id", pc.ID).Debug("prepared context claimed concurrently, retrying")
	}

	if !fallback {
		return nil, fmt.Errorf("%w: no prepared context available, run analyze to generate one", errs.ErrState)
	}
	return h.buildFallback(ctx)
}

func (h *Handoff) buildFallback(ctx context.Context) (*Injection, error) {
	var parts []string

	loops, err := h.store.UnresolvedLoops(ctx, h.maxLoops)
	if err != nil {
		return nil, err
	}
	if len(loops) > 0 {
		parts = append(parts, "🔄 OPEN LOOPS - FOLLOW UP ON THESE FIRST:")
		for _, l := range loops {
			parts = append(parts, fmt.Sprintf("• %s [%s]", l.Summary, l.Priority))
			if l.FollowUpQuestion != "" {
				parts = append(parts, fmt.Sprintf("  Ask: %q", l.FollowUpQuestion))
			}
		}
		parts = append(parts, "")
	}

	memories, err := h.store.RecentMemories(ctx, 2*h.maxMemories)
	if err != nil {
		return nil, err
	}
	if len(memories) > 0 {
		parts = append(parts, "📝 RECENT MEMORIES:")
		for i, m := range memories {
			if i >= h.maxMemories {
				break
			}
			parts = append(parts, fmt.Sprintf("• [%s] %s", m.Type, truncate(m.Content, 200)))
		}
		parts = append(parts, "")
	}

	prompt := strings.Join(parts, "\n")
	if prompt == "" {
		prompt = "(No context available yet)"
	}
	return &Injection{Prompt: prompt, Source: "fallback"}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
