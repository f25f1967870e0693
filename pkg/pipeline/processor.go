package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/raster"
)

// PageLoader returns the page images of a file.
type PageLoader interface {
	Pages(ctx context.Context, path string) ([]image.Image, error)
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Loader     PageLoader
	Extractor  *ocr.Extractor
	Recognizer ocr.Recognizer
	Logger     *slog.Logger
}

// Processor turns one input file into text.
type Processor struct {
	loader     PageLoader
	extractor  *ocr.Extractor
	recognizer ocr.Recognizer
	logger     *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(c ProcessorConfig) (*Processor, error) {
	if c.Loader == nil || c.Extractor == nil || c.Recognizer == nil {
		return nil, fmt.Errorf("processor requires a loader, an extractor and a recognizer")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		loader:     c.Loader,
		extractor:  c.Extractor,
		recognizer: c.Recognizer,
		logger:     logger,
	}, nil
}

// Engine is the recognizer name recorded in outputs.
func (p *Processor) Engine() string {
	return p.recognizer.Name()
}

// ExtractFile extracts the text of path. PDFs produce page headed text,
// images produce the text of their single page. Load failures are errors;
// unreadable content is an empty outcome.
func (p *Processor) ExtractFile(ctx context.Context, path string) (ocr.Outcome, error) {
	pages, err := p.loader.Pages(ctx, path)
	if err != nil {
		return ocr.Outcome{}, err
	}

	if raster.IsPDF(path) {
		return p.extractor.ExtractDocument(ctx, pages, p.recognizer), nil
	}
	if len(pages) == 0 {
		return ocr.Outcome{}, nil
	}
	return p.extractor.Extract(ctx, pages[0], p.recognizer), nil
}
