package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

const anthropicMaxTokens = 2000

// Anthropic calls the Claude Messages API. The API key comes from
// ANTHROPIC_API_KEY in the environment.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic provider for the given model.
func NewAnthropic(model string) *Anthropic {
	if model == "" {
		model = "claude-haiku-4-5"
	}
	client := anthropic.NewClient()
	return &Anthropic{client: &client, model: model}
}

// Complete sends the prompt as a single user message and returns the
// concatenated text blocks of the response.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return sb.String(), nil
}

// Model returns the configured model name.
func (a *Anthropic) Model() string { return a.model }
