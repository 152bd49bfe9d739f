// Package embedder converts text to vector embeddings for the semantic
// search adapters. The embedder is an implementation detail of those
// adapters; the engine never touches it.
//
// Implementations: mock (testing), onnx (local, build tag "onnx"), or any
// API-backed embedder supplied by the host application.
package embedder

import "context"

// Embedder converts text to vector embeddings.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
