package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

// branch is one retrieval backend dispatch: which adapter to call, with
// which isolation key and time budget.
type branch struct {
	source  core.Source
	key     string
	timeout time.Duration
	search  func(ctx context.Context, userID, key, query string, limit int) ([]core.MemoryItem, error)
}

// branchResult carries one branch's outcome back to the merger. items and
// err are mutually exclusive.
type branchResult struct {
	source core.Source
	items  []core.MemoryItem
	err    *core.BranchError
}

// breakerSet holds one circuit breaker per retrieval branch. A backend
// that keeps failing gets its branch short-circuited for a cooldown
// instead of eating its full timeout on every request.
type breakerSet map[core.Source]*gobreaker.CircuitBreaker

func newBreakerSet() breakerSet {
	set := make(breakerSet, 3)
	for _, src := range []core.Source{core.SourceSemantic, core.SourceGraph, core.SourceChunks} {
		set[src] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(src),
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return set
}

// branches maps a plan's tool sequence to concrete dispatches. Unknown
// tools and tools without a configured backend are dropped, never fatal:
// plans are advisory.
func (e *Engine) branches(key core.IsolationKey, tools []string) []branch {
	out := make([]branch, 0, len(tools))
	for _, tool := range tools {
		switch tool {
		case core.ToolSemanticSearch:
			out = append(out, branch{
				source:  core.SourceSemantic,
				key:     key.SemanticKey,
				timeout: e.timeouts.Semantic,
				search:  e.semantic.Search,
			})
		case core.ToolGraphSearch:
			out = append(out, branch{
				source:  core.SourceGraph,
				key:     key.GraphKey,
				timeout: e.timeouts.Graph,
				search:  e.graph.Search,
			})
		case core.ToolChunkSearch:
			if e.chunks == nil {
				e.logger.Debug("chunk branch requested but not configured")
				continue
			}
			out = append(out, branch{
				source:  core.SourceChunks,
				timeout: e.timeouts.Chunks,
				search:  e.chunks.Search,
			})
		default:
			e.logger.Warn("plan names unknown tool", zap.String("tool", tool))
		}
	}
	return out
}

// execute fans out to every branch of the plan concurrently and waits for
// all of them. Each branch gets its own deadline and circuit breaker, so
// one slow or dead backend cannot starve the rest. Returns the per-branch
// results plus how many branches failed out of how many ran.
func (e *Engine) execute(ctx context.Context, userID string, key core.IsolationKey, query string, tools []string, limit int) ([]branchResult, int, int) {
	dispatches := e.branches(key, tools)
	if len(dispatches) == 0 {
		return nil, 0, 0
	}

	// Split the budget across branches; the merger deduplicates and
	// re-truncates, so a little overlap here is fine.
	perBranch := (limit + len(dispatches) - 1) / len(dispatches)
	if perBranch < 1 {
		perBranch = 1
	}

	results := make([]branchResult, len(dispatches))
	done := make(chan int, len(dispatches))
	for i, b := range dispatches {
		go func(i int, b branch) {
			results[i] = e.runBranch(ctx, userID, b, query, perBranch)
			done <- i
		}(i, b)
	}
	for range dispatches {
		<-done
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			e.logger.Warn("retrieval branch failed",
				zap.String("branch", string(r.err.Branch)),
				zap.Bool("timeout", r.err.Timeout),
				zap.Error(r.err.Err))
		}
	}
	return results, failed, len(dispatches)
}

func (e *Engine) runBranch(ctx context.Context, userID string, b branch, query string, limit int) branchResult {
	bctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	v, err := e.breakers[b.source].Execute(func() (interface{}, error) {
		return b.search(bctx, userID, b.key, query, limit)
	})
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(bctx.Err(), context.DeadlineExceeded)
		return branchResult{
			source: b.source,
			err:    &core.BranchError{Branch: b.source, Timeout: timeout, Err: err},
		}
	}

	items, _ := v.([]core.MemoryItem)
	for i := range items {
		items[i].Source = b.source
	}
	return branchResult{source: b.source, items: items}
}
