package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorruptIndex is returned when a persisted index cannot be decoded.
	ErrCorruptIndex = errors.New("corrupt index artifact")

	// ErrInvalidDimensions is returned when an index is created with a non-positive dimension.
	ErrInvalidDimensions = errors.New("index dimensions must be positive")
)
