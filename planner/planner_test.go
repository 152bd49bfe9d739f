package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

func TestFallback(t *testing.T) {
	plan := Fallback()
	assert.Equal(t, core.StrategyFast, plan.Strategy)
	assert.Equal(t, []string{core.ToolSemanticSearch}, plan.Tools)
}

func TestPlanWithTimeout_UsesPlannerResult(t *testing.T) {
	p := Func(func(ctx context.Context, message string, state core.ConversationState) (*core.ContextPlan, error) {
		return &core.ContextPlan{
			Strategy: core.StrategyBalanced,
			Tools:    []string{core.ToolSemanticSearch, core.ToolGraphSearch},
		}, nil
	})

	plan := PlanWithTimeout(context.Background(), p, time.Second, "hello", core.ConversationState{}, nil)
	assert.Equal(t, core.StrategyBalanced, plan.Strategy)
}

func TestPlanWithTimeout_FallsBackOnTimeout(t *testing.T) {
	p := Func(func(ctx context.Context, message string, state core.ConversationState) (*core.ContextPlan, error) {
		select {
		case <-time.After(5 * time.Second):
			return Fallback(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	start := time.Now()
	plan := PlanWithTimeout(context.Background(), p, 20*time.Millisecond, "hello", core.ConversationState{}, nil)
	elapsed := time.Since(start)

	assert.Equal(t, core.StrategyFast, plan.Strategy)
	assert.Less(t, elapsed, time.Second, "must return promptly after the budget")
}

func TestPlanWithTimeout_FallsBackOnError(t *testing.T) {
	p := Func(func(ctx context.Context, message string, state core.ConversationState) (*core.ContextPlan, error) {
		return nil, errors.New("model unavailable")
	})

	plan := PlanWithTimeout(context.Background(), p, time.Second, "hello", core.ConversationState{}, nil)
	assert.Equal(t, core.StrategyFast, plan.Strategy)
}

func TestPlanWithTimeout_RejectsInvalidStrategy(t *testing.T) {
	p := Func(func(ctx context.Context, message string, state core.ConversationState) (*core.ContextPlan, error) {
		return &core.ContextPlan{Strategy: "turbo"}, nil
	})

	plan := PlanWithTimeout(context.Background(), p, time.Second, "hello", core.ConversationState{}, nil)
	assert.Equal(t, core.StrategyFast, plan.Strategy)
}

func TestPlanWithTimeout_NilPlanner(t *testing.T) {
	plan := PlanWithTimeout(context.Background(), nil, time.Second, "hello", core.ConversationState{}, nil)
	assert.Equal(t, core.StrategyFast, plan.Strategy)
}

func TestParsePlan(t *testing.T) {
	plan, err := parsePlan(`{"strategy": "comprehensive", "tools": ["semantic_search", "graph_search", "chunk_search"]}`)
	require.NoError(t, err)
	assert.Equal(t, core.StrategyComprehensive, plan.Strategy)
	assert.Len(t, plan.Tools, 3)
}

func TestParsePlan_SurroundingProse(t *testing.T) {
	plan, err := parsePlan("Here is the plan:\n{\"strategy\": \"fast\", \"tools\": [\"semantic_search\"]}\nDone.")
	require.NoError(t, err)
	assert.Equal(t, core.StrategyFast, plan.Strategy)
}

func TestParsePlan_UnknownToolsDropped(t *testing.T) {
	plan, err := parsePlan(`{"strategy": "balanced", "tools": ["semantic_search", "rm_rf"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{core.ToolSemanticSearch}, plan.Tools)
}

func TestParsePlan_Invalid(t *testing.T) {
	_, err := parsePlan("I could not decide.")
	require.Error(t, err)

	_, err = parsePlan(`{"strategy": "warp"}`)
	require.Error(t, err)
}

func TestForStrategy(t *testing.T) {
	assert.Equal(t, []string{core.ToolSemanticSearch}, ForStrategy(core.StrategyFast).Tools)
	assert.Contains(t, ForStrategy(core.StrategyComprehensive).Tools, core.ToolChunkSearch)
	assert.NotContains(t, ForStrategy(core.StrategyBalanced).Tools, core.ToolChunkSearch)
}
