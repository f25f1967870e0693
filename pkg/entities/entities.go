// Package entities extracts structured fields from document text.
package entities

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rasaya1/OCRFastAPI/pkg/completion"
	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/entities/llm"
	"github.com/rasaya1/OCRFastAPI/pkg/entities/pattern"
)

// Extractor pulls the fields expected for a document type out of its text.
type Extractor interface {
	// Name identifies the implementation ("pattern" or "llm").
	Name() string

	Extract(ctx context.Context, text string, t doctype.Type) (map[string]any, error)
}

// Config selects an Extractor.
type Config struct {
	// Completion configures the language model. A disabled or keyless
	// provider selects the pattern extractor.
	Completion completion.Config

	Logger *slog.Logger
}

// New returns the LLM extractor when a provider is configured and has
// credentials, and the pattern extractor otherwise.
func New(c Config) (Extractor, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c.Completion.Logger = logger

	fn, err := completion.New(c.Completion)
	switch {
	case errors.Is(err, completion.ErrDisabled):
		return pattern.NewExtractor(), nil
	case errors.Is(err, completion.ErrNoCredentials):
		logger.Warn("no API key for llm provider, using pattern extraction", "provider", c.Completion.Provider)
		return pattern.NewExtractor(), nil
	case err != nil:
		return nil, err
	}

	return llm.NewExtractor(llm.Config{Complete: fn, Logger: logger})
}

var (
	_ Extractor = (*pattern.Extractor)(nil)
	_ Extractor = (*llm.Extractor)(nil)
)
