// Package core defines the shared types that flow between the retrieval
// components: memory items, search results, context plans, and the error
// taxonomy. It has no dependencies on the backends or on any component
// package, so every other package can import it.
package core

import (
	"time"
)

// Source identifies which memory subsystem a memory item came from.
type Source string

const (
	// SourceSemantic marks items retrieved from the vector/entity store.
	SourceSemantic Source = "semantic"

	// SourceGraph marks items retrieved from the temporal knowledge graph.
	SourceGraph Source = "graph"

	// SourceEpisodic marks synthesized items such as the cached user
	// narrative, which is derived from episodes rather than retrieved.
	SourceEpisodic Source = "episodic"

	// SourceChunks marks items retrieved from the document-chunk index.
	// Only the comprehensive strategy dispatches this branch.
	SourceChunks Source = "chunks"
)

// Strategy is the retrieval strategy selected for a request. It is chosen
// once per request, by the caller, the classifier, or the planner, and never
// changes within a request.
type Strategy string

const (
	// StrategyFast performs direct search without consulting the planner.
	StrategyFast Strategy = "fast"

	// StrategyBalanced adds fast-model synthesis over the search results.
	StrategyBalanced Strategy = "balanced"

	// StrategyAutonomous runs the full planner-driven tool sequence.
	StrategyAutonomous Strategy = "autonomous"

	// StrategyComprehensive adds the document-chunk branch. Latency targets
	// do not apply; requests in this mode are allowed 20-30s.
	StrategyComprehensive Strategy = "comprehensive"
)

// ValidStrategy reports whether s is one of the four known strategies.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategyFast, StrategyBalanced, StrategyAutonomous, StrategyComprehensive:
		return true
	}
	return false
}

// Tool names a retrieval step in a context plan's tool sequence.
// The engine maps each name to a search branch at execution time.
const (
	ToolSemanticSearch = "semantic_search"
	ToolGraphSearch    = "graph_search"
	ToolChunkSearch    = "chunk_search"
)

// IsolationKey carries the per-backend partition identifiers derived once
// per request by scope.Resolve. It is never mutated after creation and is
// owned exclusively by the request that derived it.
type IsolationKey struct {
	// SemanticKey narrows the semantic backend. Empty means no isolation
	// beyond the user partition (full-account search, the fail-open default).
	SemanticKey string

	// GraphKey partitions the graph backend. Always encodes the user id;
	// under app-specific scope it also encodes the application id.
	GraphKey string

	// Window is a recency bound applied to retrieved items. Zero means
	// unbounded. Only the time-bounded scope sets it.
	Window time.Duration

	// Degraded is true when the granted scope was missing or unknown and
	// the resolver fell open to full access. The caller logs this; the
	// resolver itself stays pure.
	Degraded bool
}

// MemoryItem is a stored memory as returned by a search adapter. Items are
// read-only to this engine; ingestion owns their lifecycle.
//
// Two backends assign ids independently, so identity for dedup purposes is
// (OwnerUserID, hash of normalized Text), never ID.
type MemoryItem struct {
	ID           string
	OwnerUserID  string
	OriginAppID  string
	Text         string
	EmbeddingRef string
	CreatedAt    time.Time
	Source       Source

	// Relevance is the backend-assigned retrieval score for the query that
	// produced this item. It is transient: meaningful only within the
	// request that retrieved the item.
	Relevance float64
}

// SearchResult pairs a memory item with its relevance score for ranking.
// Results are created and destroyed within a single request.
type SearchResult struct {
	Item   MemoryItem
	Score  float64
	Source Source

	// AltScores retains the score every branch assigned to this logical
	// memory when more than one branch returned it. Kept for debuggability;
	// ranking uses Score only.
	AltScores map[Source]float64
}

// ContextPlan is a cached retrieval decision: which strategy to run and
// which tool sequence to dispatch. Plans are advisory; a stale or raced
// plan affects cost, not correctness.
type ContextPlan struct {
	CacheKey  uint64
	Strategy  Strategy
	Tools     []string
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the plan's TTL has elapsed at time now.
func (p *ContextPlan) Expired(now time.Time) bool {
	if p.TTL <= 0 {
		return false
	}
	return now.After(p.CreatedAt.Add(p.TTL))
}

// ConversationState is the minimal per-request conversation context passed
// in by the caller. This engine does not persist it.
type ConversationState struct {
	// IsNew is true for the first turn of a conversation.
	IsNew bool

	// ContextHint is an optional summary of context accumulated so far,
	// maintained by the caller.
	ContextHint string
}
