package testutils

import (
	"context"
	"sync"

	"github.com/rasaya1/OCRFastAPI/pkg/completion"
)

// MockCompletion is a scripted completion.Func.
type MockCompletion struct {
	mu sync.Mutex

	// Reply is returned for every prompt.
	Reply string

	// Err is returned instead of Reply when set.
	Err error

	// Prompts records every prompt received.
	Prompts []string
}

// Func returns the completion.Func backed by m.
func (m *MockCompletion) Func() completion.Func {
	return func(_ context.Context, prompt string) (string, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Prompts = append(m.Prompts, prompt)
		if m.Err != nil {
			return "", m.Err
		}
		return m.Reply, nil
	}
}
