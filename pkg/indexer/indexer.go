// Package indexer feeds documents into the store: text files directly,
// scans through OCR, whole directories and watched directories.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr/raster"
	"github.com/rasaya1/OCRFastAPI/pkg/pipeline"
)

const (
	// DefaultPattern selects the files IndexDirectory reads.
	DefaultPattern = "*.txt"

	// metadataSuffix marks the sidecars written by the batch pipeline.
	metadataSuffix = "_metadata.txt"

	defaultDebounce = 500 * time.Millisecond
)

// ErrNoProcessor is returned by IndexWithOCR when no OCR processor is set.
var ErrNoProcessor = errors.New("OCR processor not configured")

// Config holds Indexer settings.
type Config struct {
	// Store receives the documents.
	Store pipeline.Sink

	// Processor runs OCR for IndexWithOCR and for watched scans. Optional.
	Processor *pipeline.Processor

	// Debounce coalesces bursts of file events in Watch. Defaults to 500ms.
	Debounce time.Duration

	Logger *slog.Logger
}

// Indexer adds files to a store.
type Indexer struct {
	store     pipeline.Sink
	processor *pipeline.Processor
	debounce  time.Duration
	logger    *slog.Logger
}

// New creates an Indexer.
func New(c Config) (*Indexer, error) {
	if c.Store == nil {
		return nil, errors.New("indexer requires a store")
	}
	i := &Indexer{
		store:     c.Store,
		processor: c.Processor,
		debounce:  c.Debounce,
		logger:    c.Logger,
	}
	if i.debounce <= 0 {
		i.debounce = defaultDebounce
	}
	if i.logger == nil {
		i.logger = slog.New(slog.DiscardHandler)
	}
	return i, nil
}

// IndexTextFile adds the content of a text file with confidence 0. It
// reports false for a blank file.
func (i *Indexer) IndexTextFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	pos, err := i.store.Add(ctx, text, path, 0)
	if err != nil {
		return false, fmt.Errorf("indexing %s: %w", path, err)
	}

	i.logger.Debug("indexed text file", "path", path, "position", pos)
	return true, nil
}

// IndexWithOCR extracts path with the OCR processor and adds the text with
// its OCR confidence. It reports false when no text was found.
func (i *Indexer) IndexWithOCR(ctx context.Context, path string) (bool, error) {
	if i.processor == nil {
		return false, ErrNoProcessor
	}

	out, err := i.processor.ExtractFile(ctx, path)
	if err != nil {
		return false, fmt.Errorf("extracting %s: %w", path, err)
	}
	if out.Empty() {
		i.logger.Warn("no text extracted", "path", path)
		return false, nil
	}

	pos, err := i.store.Add(ctx, out.Text, path, out.Confidence)
	if err != nil {
		return false, fmt.Errorf("indexing %s: %w", path, err)
	}

	i.logger.Debug("indexed scan", "path", path, "position", pos, "confidence", out.Confidence)
	return true, nil
}

// IndexDirectory indexes the direct children of dir matching pattern
// (DefaultPattern when empty) in name order. Batch pipeline metadata sidecars
// are skipped. Per-file failures are logged and skipped; the count of added
// documents is returned.
func (i *Indexer) IndexDirectory(ctx context.Context, dir, pattern string) (int, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("reading directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	slices.Sort(matches)

	count := 0
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if strings.HasSuffix(path, metadataSuffix) {
			continue
		}
		if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
			continue
		}

		ok, err := i.indexPath(ctx, path)
		if err != nil {
			i.logger.Error("failed to index file", "path", path, "error", err)
			continue
		}
		if ok {
			count++
		}
	}

	i.logger.Info("indexed directory", "dir", dir, "pattern", pattern, "count", count)
	return count, nil
}

// indexPath routes scans to OCR when a processor is set and everything else
// to the text reader.
func (i *Indexer) indexPath(ctx context.Context, path string) (bool, error) {
	if i.processor != nil && raster.IsSupported(path) {
		return i.IndexWithOCR(ctx, path)
	}
	return i.IndexTextFile(ctx, path)
}
