// Package engine is the orchestrator: it resolves the caller's scope into
// isolation keys, decides whether retrieval is needed at all, selects a
// context plan, fans out to the retrieval backends, and merges what comes
// back into one ranked context block.
//
// The engine holds no per-request state. Every collaborator except the two
// core search backends is optional; a missing collaborator disables its
// feature and nothing else.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo-go-sdk/classify"
	"github.com/mnemohq/mnemo-go-sdk/core"
	"github.com/mnemohq/mnemo-go-sdk/plancache"
	"github.com/mnemohq/mnemo-go-sdk/planner"
	"github.com/mnemohq/mnemo-go-sdk/scope"
	"github.com/mnemohq/mnemo-go-sdk/search"
	"github.com/mnemohq/mnemo-go-sdk/worker"
)

// DefaultLimit is the result count used when the caller does not set one.
const DefaultLimit = 10

// Timeouts bounds each stage of a retrieval request independently. A slow
// branch can only lose its own results, never delay the others.
type Timeouts struct {
	Semantic time.Duration // default 300ms
	Graph    time.Duration // default 2s
	Chunks   time.Duration // default 25s
	Planner  time.Duration // default 1s
}

func (t *Timeouts) applyDefaults() {
	if t.Semantic <= 0 {
		t.Semantic = 300 * time.Millisecond
	}
	if t.Graph <= 0 {
		t.Graph = 2 * time.Second
	}
	if t.Chunks <= 0 {
		t.Chunks = 25 * time.Second
	}
	if t.Planner <= 0 {
		t.Planner = time.Second
	}
}

// Engine orchestrates hybrid memory retrieval.
type Engine struct {
	semantic search.Searcher
	graph    search.Searcher
	chunks   search.Searcher

	plans      *plancache.Cache
	planner    planner.Planner
	worker     *worker.Worker
	narratives *worker.NarrativeCache

	timeouts Timeouts
	breakers breakerSet
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithPlanner sets the planner consulted for autonomous requests.
func WithPlanner(p planner.Planner) Option {
	return func(e *Engine) { e.planner = p }
}

// WithPlanCache sets the context plan cache.
func WithPlanCache(c *plancache.Cache) Option {
	return func(e *Engine) { e.plans = c }
}

// WithWorker sets the background worker that Remember dispatches to.
func WithWorker(w *worker.Worker) Option {
	return func(e *Engine) { e.worker = w }
}

// WithChunkSearcher enables the document-chunk branch.
func WithChunkSearcher(s search.Searcher) Option {
	return func(e *Engine) { e.chunks = s }
}

// WithNarratives sets the narrative cache consulted on new conversations.
func WithNarratives(n *worker.NarrativeCache) Option {
	return func(e *Engine) { e.narratives = n }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTimeouts overrides the per-stage timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(e *Engine) { e.timeouts = t }
}

// New creates an engine over the semantic and graph backends.
func New(semantic, graph search.Searcher, opts ...Option) *Engine {
	e := &Engine{
		semantic: semantic,
		graph:    graph,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("engine")
	e.timeouts.applyDefaults()
	e.breakers = newBreakerSet()
	return e
}

// Input is one retrieval request.
type Input struct {
	// UserID identifies the account. Required.
	UserID string

	// ApplicationID identifies the calling application. Required.
	ApplicationID string

	// ScopeClaim is the access scope the caller was granted:
	// "all_memories", "app_specific", or "time_bounded". Unknown values
	// fall open to all_memories and mark the output degraded.
	ScopeClaim string

	// Message is the user message driving retrieval.
	Message string

	// IsNewConversation is true for the first turn of a conversation.
	IsNewConversation bool

	// ContextHint is an optional caller-maintained conversation summary,
	// passed through to the planner.
	ContextHint string

	// Speed pins the retrieval strategy. Empty or unknown lets the engine
	// decide; StrategyAutonomous forces a planner consultation.
	Speed core.Strategy

	// Limit caps the merged result count. Defaults to DefaultLimit.
	Limit int

	// NoContext is the caller's declaration that this message needs no
	// stored context. Always honored.
	NoContext bool
}

// Output is the merged, ranked context for one request.
type Output struct {
	// Results is the deduplicated context, best first. The first entry may
	// be a synthesized narrative item (Source == core.SourceEpisodic).
	Results []core.SearchResult

	// Strategy is the strategy that actually ran.
	Strategy core.Strategy

	// Degraded is true when the output is known to be incomplete: an
	// unknown scope claim, or one or more failed retrieval branches.
	Degraded bool

	// Skipped is true when the classifier decided no retrieval was needed.
	Skipped bool

	// Reason explains a skip or degradation, for logging.
	Reason string

	// PlanCached is true when the plan came from the cache.
	PlanCached bool
}

// Run executes one retrieval request. The only error it returns is
// core.ErrInvalidScopeInput for malformed identity; every downstream
// failure is absorbed into a degraded Output instead, because an
// incomplete context is more useful than no response.
func (e *Engine) Run(ctx context.Context, in *Input) (*Output, error) {
	key, err := scope.Resolve(in.UserID, in.ApplicationID, in.ScopeClaim)
	if err != nil {
		return &Output{Reason: "invalid_scope_input"}, err
	}

	out := &Output{}
	if key.Degraded {
		out.Degraded = true
		out.Reason = "unknown_scope"
		e.logger.Warn("unknown scope claim, falling open to full access",
			zap.String("user_id", in.UserID),
			zap.String("scope", in.ScopeClaim))
	}

	decision := classify.Classify(in.Message, in.NoContext)
	if decision.SkipRetrieval {
		out.Skipped = true
		out.Reason = decision.Reason
		out.Strategy = core.StrategyFast
		return out, nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	plan, cached := e.selectPlan(ctx, in)
	out.Strategy = plan.Strategy
	out.PlanCached = cached

	results, failed, ran := e.execute(ctx, in.UserID, key, in.Message, plan.Tools, limit)
	if ran > 0 && failed == ran {
		e.logger.Error("all retrieval branches failed",
			zap.String("user_id", in.UserID),
			zap.Error(core.ErrRetrievalUnavailable))
		out.Degraded = true
		out.Reason = "retrieval_unavailable"
		return out, nil
	}
	if failed > 0 {
		out.Degraded = true
		if out.Reason == "" {
			out.Reason = "partial_retrieval"
		}
	}

	out.Results = merge(results, key.Window, e.now(), limit)
	e.prependNarrative(in, plan.Strategy, out)
	return out, nil
}

// selectPlan picks the context plan for this request. Pinned non-autonomous
// speeds map straight to a default plan; everything else goes through the
// cache and, on a miss, the planner with its fallback.
func (e *Engine) selectPlan(ctx context.Context, in *Input) (*core.ContextPlan, bool) {
	if core.ValidStrategy(in.Speed) && in.Speed != core.StrategyAutonomous {
		return planner.ForStrategy(in.Speed), false
	}

	var cacheKey uint64
	if e.plans != nil {
		cacheKey = e.plans.Key(in.UserID, in.Message, in.IsNewConversation)
		if plan, ok := e.plans.Get(cacheKey); ok {
			return plan, true
		}
	}

	state := core.ConversationState{IsNew: in.IsNewConversation, ContextHint: in.ContextHint}
	var plan *core.ContextPlan
	if e.planner == nil && in.Speed != core.StrategyAutonomous {
		plan = planner.ForStrategy(core.StrategyBalanced)
	} else {
		plan = planner.PlanWithTimeout(ctx, e.planner, e.timeouts.Planner, in.Message, state, e.logger)
	}

	if e.plans != nil {
		e.plans.Put(cacheKey, plan)
	}
	return plan, false
}

// prependNarrative puts the user's standing narrative in front of the
// results on the first turn of a conversation, when a strategy that wants
// synthesized context is running. The narrative does not count against the
// caller's limit.
func (e *Engine) prependNarrative(in *Input, strategy core.Strategy, out *Output) {
	if e.narratives == nil || !in.IsNewConversation {
		return
	}
	if strategy != core.StrategyBalanced && strategy != core.StrategyAutonomous {
		return
	}
	text, ok := e.narratives.Get(in.UserID)
	if !ok || text == "" {
		return
	}
	item := core.MemoryItem{
		OwnerUserID: in.UserID,
		Text:        text,
		CreatedAt:   e.now(),
		Source:      core.SourceEpisodic,
	}
	head := core.SearchResult{Item: item, Score: 1, Source: core.SourceEpisodic}
	out.Results = append([]core.SearchResult{head}, out.Results...)
}

// Remember dispatches a new memory to the background worker. It returns
// immediately; persistence, retries, and narrative recomputation happen off
// the request path.
func (e *Engine) Remember(userID, appID, text string) {
	if e.worker == nil {
		e.logger.Warn("memory dropped, no worker configured",
			zap.String("user_id", userID))
		return
	}
	e.worker.OnMemoryWritten(userID, appID, text)
}
