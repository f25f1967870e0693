// Package ocr extracts text from page images without ground truth.
//
// An Extractor classifies the page layout, builds a contrast normalized
// variant, runs every configuration a Recognizer offers against both the
// original and the variant, and keeps the longest non-empty result.
package ocr

import (
	"context"
	"image"
)

// RecognizeConfig is one engine configuration tried per image variant.
type RecognizeConfig struct {
	// Name identifies the configuration in logs (e.g. "psm6").
	Name string

	// PageSegMode is the engine's page segmentation mode, if it has one.
	PageSegMode int

	// TokenConfidence asks the engine for per-token confidences and a text
	// rebuilt from confident tokens.
	TokenConfidence bool
}

// Recognition is the raw result of one engine call.
type Recognition struct {
	Text string

	// Confidence is on a 0-100 scale. Nil means the engine reported none.
	Confidence *float64
}

// Recognizer is a pluggable OCR engine.
type Recognizer interface {
	// Name is the engine name recorded in outputs.
	Name() string

	// Configs lists the configurations to try, in order.
	Configs() []RecognizeConfig

	// Recognize runs the engine once.
	Recognize(ctx context.Context, img image.Image, cfg RecognizeConfig) (Recognition, error)
}

// Outcome is the extractor's answer for a page or a document. Empty text
// always comes with a zero confidence.
type Outcome struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Empty reports whether no text was extracted.
func (o Outcome) Empty() bool {
	return o.Text == ""
}

// Float64 returns a pointer to v, for building Recognition values.
func Float64(v float64) *float64 {
	return &v
}
