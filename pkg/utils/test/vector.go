package testutils

import (
	"context"
	"errors"

	"github.com/rasaya1/OCRFastAPI/pkg/vector"
)

// MockIndex is a test vector.Index with scripted search results.
type MockIndex struct {
	Dims    int
	Vectors [][]float32

	// Hits is returned verbatim from Search, ignoring k, so tests can
	// simulate a backend that returns sentinels or too many rows.
	Hits []vector.Hit

	// SearchErr is returned from Search when set.
	SearchErr error

	// SkewPosition makes Add report a position one past the real one.
	SkewPosition bool
}

func NewMockIndex(dims int) *MockIndex {
	return &MockIndex{Dims: dims}
}

func (m *MockIndex) Dimensions() int { return m.Dims }

func (m *MockIndex) Len() int { return len(m.Vectors) }

func (m *MockIndex) Add(_ context.Context, vec []float32) (int, error) {
	m.Vectors = append(m.Vectors, vec)
	pos := len(m.Vectors) - 1
	if m.SkewPosition {
		pos++
	}
	return pos, nil
}

func (m *MockIndex) Truncate(_ context.Context, n int) error {
	if n > len(m.Vectors) {
		return errors.New("truncate past end")
	}
	m.Vectors = m.Vectors[:n]
	return nil
}

func (m *MockIndex) Search(context.Context, []float32, int) ([]vector.Hit, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return append([]vector.Hit(nil), m.Hits...), nil
}

func (m *MockIndex) Save(context.Context, string) error { return nil }

func (m *MockIndex) Close() error { return nil }

// MockBackend hands out a single MockIndex.
type MockBackend struct {
	Index *MockIndex
}

func (b *MockBackend) Name() string     { return "mock" }
func (b *MockBackend) Artifact() string { return "index.mock" }

func (b *MockBackend) New(dims int) (vector.Index, error) {
	if b.Index == nil {
		b.Index = NewMockIndex(dims)
	}
	return b.Index, nil
}

func (b *MockBackend) Load(context.Context, string) (vector.Index, error) {
	return nil, errors.New("mock backend cannot load")
}
