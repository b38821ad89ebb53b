// Package contextgen produces and serves prepared contexts: the analysis
// orchestrator distills a finished session into a continuity payload, and
// the handoff side delivers it to the next session at most once.
package contextgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cortexmem/cortex/internal/config"
	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/llm"
	"github.com/cortexmem/cortex/internal/model"
	"github.com/cortexmem/cortex/internal/store"
)

const analysisPrompt = `You are analyzing a conversation between an AI assistant and a user.
Your job is to produce a structured context summary that will be injected into the assistant's system prompt at the start of the next session.

## Recent Conversation
%s

## Recent Memories (from past interactions)
%s

## Current Open Loops
%s

---

Produce a JSON response with exactly this structure:
{
  "context_summary": "2-3 sentence summary of where things left off and what matters most right now",
  "open_loops": [
    {
      "summary": "What's unfinished",
      "priority": "high|medium|low",
      "follow_up_question": "Natural question to re-engage on this topic"
    }
  ],
  "selected_memories": [
    {
      "content": "The actual memory text (quote if from conversation)",
      "reason": "Why this memory matters for the next session"
    }
  ],
  "topic_index": "comma-separated list of topics discussed",
  "priority_topics": "top 3-5 most important topics right now"
}

Be concise. Focus on what the assistant needs to know to be immediately useful in the next session.
Only include open loops that are genuinely unfinished — not things that were resolved.
Select 3-8 memories that are most relevant for continuity.`

// Analyzer turns a finished conversation into a prepared context. It makes
// exactly one model call per run; a failed or unparsable call produces a
// structured failure and persists nothing.
type Analyzer struct {
	store    *store.SQLiteStore
	provider llm.Provider
	cfg      *config.Config
	log      *logrus.Entry
}

// NewAnalyzer wires an analyzer over the store and a model provider.
func NewAnalyzer(s *store.SQLiteStore, p llm.Provider, cfg *config.Config, log *logrus.Entry) *Analyzer {
	return &Analyzer{store: s, provider: p, cfg: cfg, log: log}
}

// Analysis is the model's structured response.
type Analysis struct {
	ContextSummary   string                 `json:"context_summary"`
	OpenLoops        []model.LoopSnapshot   `json:"open_loops"`
	SelectedMemories []model.MemorySnapshot `json:"selected_memories"`
	TopicIndex       string                 `json:"topic_index"`
	PriorityTopics   string                 `json:"priority_topics"`
}

// AnalysisResult reports one analysis run.
type AnalysisResult struct {
	ContextID      string    `json:"context_id"`
	ConversationID string    `json:"conversation_id"`
	Analysis       *Analysis `json:"analysis"`
	PreparedPrompt string    `json:"prepared_prompt"`
}

// Run analyzes conversationText and persists a prepared context. When
// conversationID is empty a synthetic conversation is recorded so the
// context has a parent. The conversation is marked analyzed only after the
// context is durably saved.
func (a *Analyzer) Run(ctx context.Context, conversationText, conversationID string) (*AnalysisResult, error) {
	prompt, err := a.buildInput(ctx, conversationText)
	if err != nil {
		return nil, err
	}

	timeout := a.cfg.Analysis.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	raw, err := a.provider.Complete(callCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: analysis call: %v", errs.ErrExternal, err)
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		a.log.WithError(err).Warn("model returned unparsable analysis")
		return nil, err
	}

	// The model proposes loops from a stale view; drop any whose summary no
	// longer matches a currently unresolved loop.
	analysis.OpenLoops, err = a.reconcileLoops(ctx, analysis.OpenLoops)
	if err != nil {
		return nil, err
	}

	prepared := RenderPrompt(analysis)

	if conversationID == "" {
		conv, err := a.store.StartConversation(ctx, "manual", "cli")
		if err != nil {
			return nil, err
		}
		if err := a.store.EndConversation(ctx, conv.ID, analysis.ContextSummary); err != nil {
			return nil, err
		}
		conversationID = conv.ID
	}

	pc, err := a.store.SavePreparedContext(ctx, store.SaveContextParams{
		ConversationID:   conversationID,
		ContextSummary:   analysis.ContextSummary,
		OpenLoops:        analysis.OpenLoops,
		SelectedMemories: analysis.SelectedMemories,
		TopicIndex:       analysis.TopicIndex,
		PriorityTopics:   analysis.PriorityTopics,
		PreparedPrompt:   prepared,
		TTLDays:          a.cfg.Context.TTLDays,
	})
	if err != nil {
		return nil, err
	}

	if err := a.store.MarkAnalyzed(ctx, conversationID); err != nil {
		return nil, err
	}

	a.log.WithFields(logrus.Fields{
		"context_id": pc.ID,
		"loops":      len(analysis.OpenLoops),
		"memories":   len(analysis.SelectedMemories),
		"model":      a.provider.Model(),
	}).Info("analysis complete")

	return &AnalysisResult{
		ContextID:      pc.ID,
		ConversationID: conversationID,
		Analysis:       analysis,
		PreparedPrompt: prepared,
	}, nil
}

func (a *Analyzer) buildInput(ctx context.Context, conversationText string) (string, error) {
	window := a.cfg.Analysis.MemoryWindow
	if window <= 0 {
		window = 200
	}
	memories, err := a.store.RecentMemories(ctx, window)
	if err != nil {
		return "", err
	}
	loops, err := a.store.UnresolvedLoops(ctx, 10)
	if err != nil {
		return "", err
	}

	var memLines []string
	for i, m := range memories {
		if i >= 50 {
			break
		}
		memLines = append(memLines, fmt.Sprintf("- [%s] %s", m.Type, m.Content))
	}
	memText := strings.Join(memLines, "\n")
	if memText == "" {
		memText = "(No prior memories yet)"
	}

	var loopLines []string
	for _, l := range loops {
		loopLines = append(loopLines, fmt.Sprintf("- [%s] %s", l.Priority, l.Summary))
	}
	loopText := strings.Join(loopLines, "\n")
	if loopText == "" {
		loopText = "(No open loops)"
	}

	return fmt.Sprintf(analysisPrompt, conversationText, memText, loopText), nil
}

func (a *Analyzer) reconcileLoops(ctx context.Context, proposed []model.LoopSnapshot) ([]model.LoopSnapshot, error) {
	current, err := a.store.UnresolvedLoops(ctx, 100)
	if err != nil {
		return nil, err
	}
	open := make(map[string]bool, len(current))
	for _, l := range current {
		open[l.Summary] = true
	}
	var kept []model.LoopSnapshot
	for _, l := range proposed {
		if open[l.Summary] {
			kept = append(kept, l)
		}
	}
	return kept, nil
}

// parseAnalysis strips a markdown code fence if present and decodes the
// model's JSON. Any decode failure surfaces as ErrExternal.
func parseAnalysis(raw string) (*Analysis, error) {
	text := stripFences(raw)
	var a Analysis
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return nil, fmt.Errorf("%w: decode analysis response: %v", errs.ErrExternal, err)
	}
	return &a, nil
}

func stripFences(text string) string {
	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	} else if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+len("```"):]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	}
	return strings.TrimSpace(text)
}

// RenderPrompt renders an analysis into the injection prompt. The output
// depends only on the analysis contents; rendering the same analysis twice
// gives byte-identical text.
func RenderPrompt(a *Analysis) string {
	var parts []string
	if len(a.OpenLoops) > 0 {
		parts = append(parts, "🔄 OPEN LOOPS - FOLLOW UP ON THESE FIRST:")
		for _, l := range a.OpenLoops {
			parts = append(parts, fmt.Sprintf("• %s [%s]", strings.ToUpper(l.Summary), l.Priority))
			if l.FollowUpQuestion != "" {
				parts = append(parts, fmt.Sprintf("  Ask: %q", l.FollowUpQuestion))
			}
		}
		parts = append(parts, "")
	}
	if a.ContextSummary != "" {
		parts = append(parts, "🧠 KEY CONTEXT FOR THIS SESSION:", a.ContextSummary, "")
	}
	if a.PriorityTopics != "" {
		parts = append(parts, "Priority Topics: "+a.PriorityTopics, "")
	}
	if a.TopicIndex != "" {
		parts = append(parts, "📚 COMPREHENSIVE TOPIC INDEX: "+a.TopicIndex, "")
	}
	if len(a.SelectedMemories) > 0 {
		parts = append(parts, "Relevant Memories:")
		for _, m := range a.SelectedMemories {
			parts = append(parts, "• "+m.Content)
			if m.Reason != "" {
				parts = append(parts, fmt.Sprintf("  (%s)", m.Reason))
			}
		}
		parts = append(parts, "")
	}
	return strings.Join(parts, "\n")
}
