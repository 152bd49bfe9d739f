// Package mock provides a deterministic embedder for tests: no model
// files, no network.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder generates deterministic embeddings from token hashes. Texts
// that share tokens produce correlated vectors, so cosine similarity
// behaves directionally like a real model: enough for ranking and
// isolation tests, useless for real retrieval quality.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder. dimensions <= 0 selects the default (128).
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 128
	}
	return &Embedder{dimensions: dimensions}
}

// Embed creates a deterministic embedding: the normalized sum of one
// pseudo-random unit contribution per token.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, m.dimensions)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		seed := h.Sum64()

		for i := 0; i < m.dimensions; i++ {
			// Linear congruential generator keyed by the token hash.
			seed = seed*6364136223846793005 + 1442695040888963407
			embedding[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// normalize converts the vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
