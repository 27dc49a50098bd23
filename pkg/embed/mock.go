package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Mock is a deterministic offline Embedder. Each whitespace token hashes
// to a handful of dimensions, so texts sharing tokens produce vectors
// with high cosine similarity. Intended for tests and for running the
// memory system without an embedding provider.
type Mock struct {
	Dim int // vector dimensionality, default 64
}

var _ Embedder = (*Mock)(nil)

// NewMock creates a mock embedder with the given dimensionality.
// Pass 0 for the default of 64.
func NewMock(dim int) *Mock {
	if dim <= 0 {
		dim = 64
	}
	return &Mock{Dim: dim}
}

func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vec := make([]float32, m.Dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		seed := h.Sum32()
		// Spread each token over three dimensions.
		for i := range 3 {
			vec[int(seed>>(i*8))%m.Dim] += 1
		}
	}
	// L2 normalize so cosine distance behaves.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *Mock) Dimension() int { return m.Dim }
