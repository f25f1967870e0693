// Package vector provides the append-only similarity index behind the
// document store.
//
// Positions are dense: the Nth vector added sits at position N-1 and never
// moves. Vectors are expected to be unit length, so the inner product is the
// cosine similarity.
package vector

import "context"

// Hit is one search result.
type Hit struct {
	// Position is the index position of the matched vector. Backends may
	// return -1 for unfilled slots; callers drop those.
	Position int

	// Score is the similarity (higher = more similar).
	Score float32
}

// Index is an exact nearest-neighbor index over fixed-dimension vectors.
type Index interface {
	// Dimensions is the vector length accepted by Add and Search.
	Dimensions() int

	// Len is the number of vectors stored.
	Len() int

	// Add appends a vector and returns its position.
	Add(ctx context.Context, vec []float32) (int, error)

	// Truncate drops every vector at position >= n.
	Truncate(ctx context.Context, n int) error

	// Search returns up to k hits ordered by score descending, ties by
	// position ascending.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Save writes the index to path. The file at path may exist and be empty.
	Save(ctx context.Context, path string) error

	// Close releases any resources held by the index.
	Close() error
}

// Backend creates and loads one kind of Index.
type Backend interface {
	// Name is the configured backend name (e.g. "flat").
	Name() string

	// Artifact is the file name the index is persisted under.
	Artifact() string

	// New creates an empty index.
	New(dims int) (Index, error)

	// Load reads an index previously written by Save.
	Load(ctx context.Context, path string) (Index, error)
}
