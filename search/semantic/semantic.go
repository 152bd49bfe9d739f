// Package semantic adapts an embedded chromem-go vector database as the
// semantic memory backend. Each user gets their own collection; the
// isolation key narrows a search to one application via metadata
// filtering.
package semantic

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo-go-sdk/core"
	"github.com/mnemohq/mnemo-go-sdk/embedder"
)

// Config tunes the adapter.
type Config struct {
	// MinSimilarity drops results scoring below this threshold [0,1].
	// Local embedders score lower than API models; default 0.
	MinSimilarity float64
}

// Adapter implements search.Searcher and search.Persister over chromem-go.
type Adapter struct {
	db       *chromem.DB
	embedder embedder.Embedder
	cfg      Config
	logger   *zap.Logger

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates a semantic adapter with its own in-memory chromem database.
func New(emb embedder.Embedder, cfg Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		db:          chromem.NewDB(),
		embedder:    emb,
		cfg:         cfg,
		logger:      logger.Named("semantic"),
		collections: make(map[string]*chromem.Collection),
	}
}

// Search retrieves memories by vector similarity. key is the application
// id to narrow to; empty searches the whole account.
func (a *Adapter) Search(ctx context.Context, userID, key, query string, limit int) ([]core.MemoryItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	col, err := a.collection(userID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	if n := col.Count(); n < limit {
		if n == 0 {
			return nil, nil
		}
		limit = n
	}

	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var where map[string]string
	if key != "" {
		where = map[string]string{"app_id": key}
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	items := make([]core.MemoryItem, 0, len(results))
	for _, res := range results {
		score := float64(res.Similarity)
		if score < a.cfg.MinSimilarity {
			continue
		}
		items = append(items, a.toItem(userID, res, score))
	}

	a.logger.Debug("semantic search",
		zap.String("user_id", userID),
		zap.String("key", key),
		zap.Int("results", len(items)))
	return items, nil
}

// Write stores a memory. The document id is derived from the user and the
// normalized text hash, so rewriting the same memory overwrites in place
// rather than duplicating.
func (a *Adapter) Write(ctx context.Context, userID, appID, text string) (string, error) {
	col, err := a.collection(userID)
	if err != nil {
		return "", err
	}

	embedding, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed memory: %w", err)
	}

	id := fmt.Sprintf("mem-%016x", core.TextHash(text))
	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
		Metadata: map[string]string{
			"owner_id":   userID,
			"app_id":     appID,
			"created_at": strconv.FormatInt(time.Now().UnixNano(), 10),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return id, nil
		}
		return "", fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

func (a *Adapter) toItem(userID string, res chromem.Result, score float64) core.MemoryItem {
	created := time.Time{}
	if raw := res.Metadata["created_at"]; raw != "" {
		if ns, err := strconv.ParseInt(raw, 10, 64); err == nil {
			created = time.Unix(0, ns)
		}
	}
	return core.MemoryItem{
		ID:          res.ID,
		OwnerUserID: userID,
		OriginAppID: res.Metadata["app_id"],
		Text:        res.Content,
		CreatedAt:   created,
		Source:      core.SourceSemantic,
		Relevance:   score,
	}
}

// collection returns the per-user collection, creating it on first use.
func (a *Adapter) collection(userID string) (*chromem.Collection, error) {
	a.mu.RLock()
	col, ok := a.collections[userID]
	a.mu.RUnlock()
	if ok {
		return col, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if col, ok := a.collections[userID]; ok {
		return col, nil
	}

	name := "user_" + userID
	if userID == "" {
		name = "global"
	}
	col, err := a.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	a.collections[userID] = col
	return col, nil
}
