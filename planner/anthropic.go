package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

// DefaultModel is the reasoning model used for planning. Planning is a
// small classification task, so the fast tier is enough.
const DefaultModel = "claude-3-5-haiku-20241022"

// Anthropic plans retrieval with a Claude call. It implements Planner.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a Claude-backed planner. model empty selects
// DefaultModel.
func NewAnthropic(client *anthropic.Client, model string) *Anthropic {
	if model == "" {
		model = DefaultModel
	}
	return &Anthropic{
		client:    client,
		model:     model,
		maxTokens: 256,
	}
}

// Plan asks the model for a strategy and tool sequence. The surrounding
// timeout and fallback live in PlanWithTimeout; this method just reports
// errors.
func (a *Anthropic) Plan(ctx context.Context, message string, state core.ConversationState) (*core.ContextPlan, error) {
	payload := fmt.Sprintf("New conversation: %t\nMessage: %s", state.IsNew, message)
	if state.ContextHint != "" {
		payload += "\nAccumulated context: " + state.ContextHint
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: planSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(payload)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planner model call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	plan, err := parsePlan(text)
	if err != nil {
		return nil, err
	}
	plan.CreatedAt = time.Now()
	return plan, nil
}

// parsePlan extracts the plan JSON from model output, tolerating prose
// around the object.
func parsePlan(text string) (*core.ContextPlan, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no plan object in model output")
	}

	var raw struct {
		Strategy string   `json:"strategy"`
		Tools    []string `json:"tools"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	strategy := core.Strategy(raw.Strategy)
	if !core.ValidStrategy(strategy) {
		return nil, fmt.Errorf("unknown strategy %q", raw.Strategy)
	}

	tools := make([]string, 0, len(raw.Tools))
	for _, tool := range raw.Tools {
		switch tool {
		case core.ToolSemanticSearch, core.ToolGraphSearch, core.ToolChunkSearch:
			tools = append(tools, tool)
		}
	}
	if len(tools) == 0 {
		tools = ForStrategy(strategy).Tools
	}

	return &core.ContextPlan{Strategy: strategy, Tools: tools}, nil
}

const planSystemPrompt = `You select a memory-retrieval plan for a personal assistant.

Reply with ONLY a JSON object, no prose:
{"strategy": "<fast|balanced|autonomous|comprehensive>", "tools": ["semantic_search", "graph_search", "chunk_search"]}

Guidance:
- "fast": simple factual recall, one search is enough
- "balanced": typical conversational turn, search memories and episodes
- "autonomous": multi-part or ambiguous request needing several searches
- "comprehensive": explicit request for exhaustive recall across documents

Include "chunk_search" only for "comprehensive".`
