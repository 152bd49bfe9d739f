// Package planner decides a retrieval strategy and tool sequence for a
// request. The planner is an external-reasoning collaborator: it may call
// out to a model and take seconds, so the engine consults it only on a
// plan-cache miss, always under a hard timeout, and always with a fallback
// ready.
package planner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

// Planner produces a context plan for a message.
type Planner interface {
	Plan(ctx context.Context, message string, state core.ConversationState) (*core.ContextPlan, error)
}

// Func adapts a plain function to the Planner interface.
type Func func(ctx context.Context, message string, state core.ConversationState) (*core.ContextPlan, error)

// Plan implements Planner.
func (f Func) Plan(ctx context.Context, message string, state core.ConversationState) (*core.ContextPlan, error) {
	return f(ctx, message, state)
}

// Fallback returns the default plan used when the planner is unavailable,
// times out, or errors: direct semantic search, nothing else.
func Fallback() *core.ContextPlan {
	return &core.ContextPlan{
		Strategy:  core.StrategyFast,
		Tools:     []string{core.ToolSemanticSearch},
		CreatedAt: time.Now(),
	}
}

// ForStrategy returns the default tool sequence for an explicitly
// requested strategy, bypassing the planner entirely.
func ForStrategy(s core.Strategy) *core.ContextPlan {
	plan := &core.ContextPlan{Strategy: s, CreatedAt: time.Now()}
	switch s {
	case core.StrategyFast:
		plan.Tools = []string{core.ToolSemanticSearch}
	case core.StrategyBalanced:
		plan.Tools = []string{core.ToolSemanticSearch, core.ToolGraphSearch}
	case core.StrategyComprehensive:
		plan.Tools = []string{core.ToolSemanticSearch, core.ToolGraphSearch, core.ToolChunkSearch}
	default: // autonomous falls back to the widest memory search
		plan.Tools = []string{core.ToolSemanticSearch, core.ToolGraphSearch}
	}
	return plan
}

// PlanWithTimeout consults p under a hard deadline and never fails: on
// timeout or error it logs and returns the fallback plan. A nil planner
// goes straight to the fallback.
func PlanWithTimeout(ctx context.Context, p Planner, timeout time.Duration, message string, state core.ConversationState, logger *zap.Logger) *core.ContextPlan {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p == nil {
		return Fallback()
	}

	planCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	plan, err := p.Plan(planCtx, message, state)
	switch {
	case err == nil && plan != nil && core.ValidStrategy(plan.Strategy):
		if len(plan.Tools) == 0 {
			plan.Tools = ForStrategy(plan.Strategy).Tools
		}
		return plan
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("planner timed out, using fallback plan",
			zap.Duration("timeout", timeout),
			zap.Error(core.ErrPlannerTimeout))
	case err != nil:
		logger.Warn("planner failed, using fallback plan", zap.Error(err))
	default:
		logger.Warn("planner returned invalid plan, using fallback")
	}
	return Fallback()
}
