// Package hashing implements an offline embeddings.Embedder using feature
// hashing over word unigrams and bigrams.
//
// It needs no model server, so the store stays usable without Ollama and
// tests get deterministic vectors. Similarity reflects shared vocabulary,
// not meaning.
package hashing

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/rasaya1/OCRFastAPI/pkg/embeddings"
)

// DefaultDimensions is used when Config.Dimensions is zero.
const DefaultDimensions = 256

// Config holds configuration for the hashing embedder.
type Config struct {
	Dimensions uint
}

// Embedder hashes tokens into a fixed-size bag-of-words vector.
type Embedder struct {
	dims uint
}

// NewEmbedder creates a hashing embedder.
func NewEmbedder(cfg Config) *Embedder {
	dims := cfg.Dimensions
	if dims == 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Dimensions returns the length of every vector produced by Embed.
func (e *Embedder) Dimensions() uint {
	return e.dims
}

// Embed returns the unnormalized hashed feature vector of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dims)
	tokens := tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return vec, nil
}

func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := sum % uint64(e.dims)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var _ embeddings.Embedder = (*Embedder)(nil)
