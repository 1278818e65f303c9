// Package semantic provides embedding-based similarity scoring. Embeddings
// are produced by an external provider; this package never computes them.
package semantic

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
