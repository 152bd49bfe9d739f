// Package search defines the one narrow contract every retrieval backend
// adapter implements. The executor depends only on these interfaces, never
// on backend-specific types, so the vector store, the temporal graph, and
// the document-chunk index are interchangeable branches.
package search

import (
	"context"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

// Searcher is a retrieval backend adapter.
//
// userID is the account partition; key narrows within it and its format is
// backend-specific (see scope.Resolve). An empty key means no isolation:
// full-account search, the fail-open default. Timeouts arrive as the ctx
// deadline; adapters must respect cancellation promptly so an abandoned
// request frees its backend connection.
//
// The returned items carry the backend's relevance score in
// MemoryItem.Relevance.
type Searcher interface {
	Search(ctx context.Context, userID, key, query string, limit int) ([]core.MemoryItem, error)
}

// Persister writes a new memory into a backend. Write must be idempotent
// for a given (userID, normalized-text hash): the background worker retries
// it on transient failure.
type Persister interface {
	Write(ctx context.Context, userID, appID, text string) (string, error)
}

// RecentLister returns a user's most recent memories, newest first. The
// background worker uses it as the raw material for narrative synthesis.
type RecentLister interface {
	Recent(ctx context.Context, userID string, limit int) ([]core.MemoryItem, error)
}
