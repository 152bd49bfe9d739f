// Package chunks adapts a chromem-go database holding document chunks.
// The chunk branch only runs under the comprehensive strategy: chunk
// collections are large, so searches get a bigger limit and a far larger
// timeout budget than the memory branches.
//
// Chunk ingestion (splitting documents) belongs to the ingestion pipeline,
// not this engine; Add exists so hosts and tests can populate the index.
package chunks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo-go-sdk/core"
	"github.com/mnemohq/mnemo-go-sdk/embedder"
)

// Adapter implements search.Searcher over per-user chunk collections.
type Adapter struct {
	db       *chromem.DB
	embedder embedder.Embedder
	logger   *zap.Logger

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates a chunk-search adapter with its own in-memory database.
func New(emb embedder.Embedder, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		db:          chromem.NewDB(),
		embedder:    emb,
		logger:      logger.Named("chunks"),
		collections: make(map[string]*chromem.Collection),
	}
}

// Search retrieves document chunks by vector similarity. Chunks are
// account-wide; the isolation key is accepted for interface symmetry and
// ignored.
func (a *Adapter) Search(ctx context.Context, userID, _ string, query string, limit int) ([]core.MemoryItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	col, err := a.collection(userID)
	if err != nil {
		return nil, err
	}
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

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	items := make([]core.MemoryItem, 0, len(results))
	for _, res := range results {
		created := time.Time{}
		if raw := res.Metadata["created_at"]; raw != "" {
			if ns, err := strconv.ParseInt(raw, 10, 64); err == nil {
				created = time.Unix(0, ns)
			}
		}
		items = append(items, core.MemoryItem{
			ID:           res.ID,
			OwnerUserID:  userID,
			Text:         res.Content,
			EmbeddingRef: res.Metadata["document_id"],
			CreatedAt:    created,
			Source:       core.SourceChunks,
			Relevance:    float64(res.Similarity),
		})
	}
	return items, nil
}

// Add indexes one document chunk for a user.
func (a *Adapter) Add(ctx context.Context, userID, documentID, text string) (string, error) {
	col, err := a.collection(userID)
	if err != nil {
		return "", err
	}

	embedding, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed chunk: %w", err)
	}

	id := fmt.Sprintf("chunk-%016x", core.TextHash(documentID+"\x00"+text))
	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
		Metadata: map[string]string{
			"document_id": documentID,
			"created_at":  strconv.FormatInt(time.Now().UnixNano(), 10),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("add chunk: %w", err)
	}
	return id, nil
}

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

	col, err := a.db.GetOrCreateCollection("chunks_"+userID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create chunk collection: %w", err)
	}
	a.collections[userID] = col
	return col, nil
}
