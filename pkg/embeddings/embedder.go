// Package embeddings defines the text embedding boundary used by the document
// store and the query path.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the length of every vector Embed returns, or zero when
	// the provider only learns it from its first response.
	Dimensions() uint

	// Close releases any resources held by the embedder.
	Close() error
}
