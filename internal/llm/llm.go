// Package llm abstracts the external model used for post-session analysis.
// The provider is an unreliable collaborator: it may error, time out, or
// return malformed output, and callers must treat its result accordingly.
package llm

import (
	"context"
	"fmt"
)

// Provider sends one prompt to a model and returns its raw text response.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// New builds a provider from configuration.
func New(provider, model string) (Provider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropic(model), nil
	case "openai":
		return NewOpenAI(model)
	default:
		return nil, fmt.Errorf("unknown analysis provider %q (use anthropic or openai)", provider)
	}
}
