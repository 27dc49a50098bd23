// Package embed provides a text embedding interface and implementations.
//
// An Embedder converts text into dense vector representations (embeddings)
// suitable for semantic search and near-duplicate detection. Within sheep
// it is an optional capability: when configured, fact inserts consult a
// vector index to detect semantic re-confirmations of existing beliefs;
// when absent, deduplication falls back to exact triple equality.
//
// # Implementations
//
//   - [OpenAI] — OpenAI text-embedding-3-small / text-embedding-3-large,
//     or any OpenAI-compatible provider via WithBaseURL
//   - [Mock] — deterministic hash-based vectors for tests and offline use
//
// # Quick Start
//
//	e := embed.NewOpenAI("sk-xxx", embed.WithModel("text-embedding-3-small"))
//	vec, err := e.Embed(ctx, "user works_at TechCorp")
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	// Implementations may split large batches into smaller API calls
	// transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")
)

// float64sToFloat32s narrows an API response vector to float32.
func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
