package store

import "errors"

var (
	// ErrEmptyText is returned when Add is called with blank text.
	ErrEmptyText = errors.New("document text is empty")

	// ErrInconsistent is returned when the index and metadata lengths diverge.
	ErrInconsistent = errors.New("index and metadata are out of sync")

	// ErrNoEmbedder is returned when a store is opened without an embedder.
	ErrNoEmbedder = errors.New("store requires an embedder")
)
