package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

const narrativeSystemPrompt = `You summarize a user's recent memories into a short standing narrative.

Write 2-4 plain sentences in third person describing who the user is, what
they are working on, and any stable preferences, based only on the memories
given. No preamble, no bullet points, no speculation beyond the memories.`

// AnthropicSynthesizer writes the per-user narrative with Claude.
type AnthropicSynthesizer struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicSynthesizer creates a Claude-backed synthesizer. An empty
// model uses the same small default as the planner.
func NewAnthropicSynthesizer(client *anthropic.Client, model anthropic.Model) *AnthropicSynthesizer {
	if model == "" {
		model = anthropic.Model("claude-3-5-haiku-20241022")
	}
	return &AnthropicSynthesizer{client: client, model: model, maxTokens: 512}
}

// Narrate implements Synthesizer.
func (s *AnthropicSynthesizer) Narrate(ctx context.Context, userID string, items []core.MemoryItem) (string, error) {
	var b strings.Builder
	b.WriteString("Memories, newest first:\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- [%s] %s\n", it.CreatedAt.Format("2006-01-02"), it.Text)
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: narrativeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(b.String())),
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative synthesis: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	narrative := strings.TrimSpace(out.String())
	if narrative == "" {
		return "", fmt.Errorf("narrative synthesis: empty response")
	}
	return narrative, nil
}
