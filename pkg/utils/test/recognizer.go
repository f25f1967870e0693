package testutils

import (
	"context"
	"image"
	"sync"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
)

// RecognizeFunc scripts one MockRecognizer call. variant is "gray" for the
// preprocessed image and "color" for anything else.
type RecognizeFunc func(variant string, cfg ocr.RecognizeConfig) (ocr.Recognition, error)

// MockRecognizer is a test ocr.Recognizer that answers from a script.
type MockRecognizer struct {
	mu sync.Mutex

	EngineName string
	Settings   []ocr.RecognizeConfig
	Respond    RecognizeFunc

	// Seen records the configuration names in call order.
	Seen []string
}

func NewMockRecognizer(respond RecognizeFunc, configs ...string) *MockRecognizer {
	m := &MockRecognizer{EngineName: "mock", Respond: respond}
	for _, name := range configs {
		m.Settings = append(m.Settings, ocr.RecognizeConfig{Name: name})
	}
	return m
}

func (m *MockRecognizer) Name() string { return m.EngineName }

func (m *MockRecognizer) Configs() []ocr.RecognizeConfig { return m.Settings }

func (m *MockRecognizer) Recognize(_ context.Context, img image.Image, cfg ocr.RecognizeConfig) (ocr.Recognition, error) {
	m.mu.Lock()
	m.Seen = append(m.Seen, cfg.Name)
	m.mu.Unlock()

	variant := "color"
	if _, ok := img.(*image.Gray); ok {
		variant = "gray"
	}
	if m.Respond == nil {
		return ocr.Recognition{}, nil
	}
	return m.Respond(variant, cfg)
}

// Calls returns how many times Recognize ran.
func (m *MockRecognizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Seen)
}
