package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// ExtractDocument extracts every page and joins the pages that produced
// text as "--- Page N ---\n<text>" blocks separated by a blank line, where N
// is the 1-based page number. The confidence is the mean over those pages.
func (e *Extractor) ExtractDocument(ctx context.Context, pages []image.Image, rec Recognizer) Outcome {
	var (
		parts []string
		sum   float64
	)

	for i, page := range pages {
		if ctx.Err() != nil {
			break
		}

		out := e.Extract(ctx, page, rec)
		if out.Empty() {
			e.logger.Debug("page produced no text", "page", i+1)
			continue
		}

		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i+1, out.Text))
		sum += out.Confidence
	}

	if len(parts) == 0 {
		return Outcome{}
	}

	return Outcome{
		Text:       strings.Join(parts, "\n\n"),
		Confidence: sum / float64(len(parts)),
	}
}
