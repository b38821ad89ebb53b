package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const openaiMaxTokens = 2000

// OpenAI calls the chat completions API. The API key comes from
// OPENAI_API_KEY in the environment.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI provider for the given model.
func NewOpenAI(model string) (*OpenAI, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("openai provider requires OPENAI_API_KEY")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{client: openai.NewClient(key), model: model}, nil
}

// Complete sends the prompt as a single user message and returns the first
// choice's content.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: openaiMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (o *OpenAI) Model() string { return o.model }
