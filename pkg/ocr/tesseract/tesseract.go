// Package tesseract is the Tesseract backed ocr.Recognizer.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
)

const (
	// EngineName is recorded in extraction outputs.
	EngineName = "tesseract"

	// MinTokenConfidence drops tokens at or below it in the token pass.
	MinTokenConfidence = 10.0
)

// pageSegModes are tried in order for each image variant.
var pageSegModes = []gosseract.PageSegMode{
	gosseract.PSM_SINGLE_BLOCK,
	gosseract.PSM_SINGLE_WORD,
	gosseract.PSM_SINGLE_COLUMN,
	gosseract.PSM_AUTO,
}

// Config holds Recognizer settings.
type Config struct {
	// Languages passed to Tesseract, e.g. "eng" or "eng+deu". Defaults to eng.
	Language string
}

// Recognizer runs Tesseract through gosseract. A fresh client is created for
// every call so trials can run concurrently.
type Recognizer struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewRecognizer creates a Tesseract recognizer.
func NewRecognizer(c Config) *Recognizer {
	lang := c.Language
	if lang == "" {
		lang = "eng"
	}
	return &Recognizer{
		languages:     strings.Split(lang, "+"),
		clientFactory: gosseract.NewClient,
	}
}

func (r *Recognizer) Name() string { return EngineName }

// Configs lists one plain pass per page segmentation mode followed by a
// token confidence pass in single block mode.
func (r *Recognizer) Configs() []ocr.RecognizeConfig {
	cfgs := make([]ocr.RecognizeConfig, 0, len(pageSegModes)+1)
	for _, psm := range pageSegModes {
		cfgs = append(cfgs, ocr.RecognizeConfig{
			Name:        fmt.Sprintf("psm%d", int(psm)),
			PageSegMode: int(psm),
		})
	}
	cfgs = append(cfgs, ocr.RecognizeConfig{
		Name:            "psm6-tokens",
		PageSegMode:     int(gosseract.PSM_SINGLE_BLOCK),
		TokenConfidence: true,
	})
	return cfgs
}

// Recognize runs one Tesseract pass over img.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, cfg ocr.RecognizeConfig) (ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.Recognition{}, fmt.Errorf("encode image: %w", err)
	}

	c := r.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(r.languages...); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set image: %w", err)
	}

	if cfg.TokenConfidence {
		boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
		if err != nil {
			return ocr.Recognition{}, fmt.Errorf("recognize tokens: %w", err)
		}
		return assembleTokens(boxes), nil
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}
	return ocr.Recognition{Text: text}, nil
}

// assembleTokens joins the confident, non-blank words with single spaces and
// averages their confidences. No surviving token means no text.
func assembleTokens(boxes []gosseract.BoundingBox) ocr.Recognition {
	var (
		words []string
		sum   float64
	)
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" || b.Confidence <= MinTokenConfidence {
			continue
		}
		words = append(words, w)
		sum += b.Confidence
	}

	if len(words) == 0 {
		return ocr.Recognition{}
	}
	return ocr.Recognition{
		Text:       strings.Join(words, " "),
		Confidence: ocr.Float64(sum / float64(len(words))),
	}
}
