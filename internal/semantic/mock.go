package semantic

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/procurehub/linematch/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// gets the same unit-length embedding, derived from a hash of the text.
type MockEmbedder struct {
	dimensions int
	fail       bool
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// NewFailingEmbedder returns an embedder whose Embed always errors, for
// exercising the signal-absent degradation path.
func NewFailingEmbedder(dimensions int) *MockEmbedder {
	e := NewMockEmbedder(dimensions)
	e.fail = true
	return e
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, context.DeadlineExceeded
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := int(h.Sum32() % 100003)

	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(seed*(i+1)))*0.1 + 0.01)
	}
	// Unit length so inner products behave like cosine similarity.
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
