// Package raster turns input files into page images: PDFs are rendered with
// pdftoppm, images are decoded directly.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultDPI is the PDF rendering resolution.
const DefaultDPI = 300

// ErrUnsupported is returned for files with an unknown extension.
var ErrUnsupported = errors.New("unsupported file type")

// SupportedExtensions lists the lower-case file extensions the pipeline reads.
var SupportedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".bmp"}

// IsSupported reports whether path has a supported extension. The check is
// case insensitive.
func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// IsPDF reports whether path names a PDF.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Config holds Rasterizer settings.
type Config struct {
	// DPI for PDF rendering. Defaults to DefaultDPI.
	DPI int

	// Pdftoppm is the binary name or path. Defaults to "pdftoppm".
	Pdftoppm string

	// MaxPages limits rendered PDF pages; 0 means no limit.
	MaxPages int

	// Runner executes pdftoppm. Defaults to ExecRunner.
	Runner Runner

	Logger *slog.Logger
}

// Rasterizer loads page images from files.
type Rasterizer struct {
	dpi      int
	pdftoppm string
	maxPages int
	runner   Runner
	logger   *slog.Logger
}

// New creates a Rasterizer.
func New(c Config) *Rasterizer {
	r := &Rasterizer{
		dpi:      c.DPI,
		pdftoppm: c.Pdftoppm,
		maxPages: c.MaxPages,
		runner:   c.Runner,
		logger:   c.Logger,
	}
	if r.dpi <= 0 {
		r.dpi = DefaultDPI
	}
	if r.pdftoppm == "" {
		r.pdftoppm = "pdftoppm"
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.runner == nil {
		r.runner = ExecRunner{Logger: r.logger}
	}
	return r
}

// Pages returns the page images of path in page order.
func (r *Rasterizer) Pages(ctx context.Context, path string) ([]image.Image, error) {
	if !IsSupported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if IsPDF(path) {
		return r.pdfPages(ctx, path)
	}

	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

// DecodeFile decodes a single image file.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (r *Rasterizer) pdfPages(ctx context.Context, path string) ([]image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "ocrfast-pages-*")
	if err != nil {
		return nil, fmt.Errorf("creating page directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("failed to remove page directory", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(r.dpi), "-png"}
	if r.maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(r.maxPages))
	}
	args = append(args, path, prefix)

	if _, errb, err := r.runner.Run(ctx, r.pdftoppm, args...); err != nil {
		return nil, fmt.Errorf("rendering %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(string(errb)))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("rendering %s: no pages produced", filepath.Base(path))
	}
	sortPages(matches)

	pages := make([]image.Image, 0, len(matches))
	for _, m := range matches {
		img, err := DecodeFile(m)
		if err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}

	r.logger.Debug("rendered pdf", "path", path, "pages", len(pages), "dpi", r.dpi)
	return pages, nil
}

// sortPages orders pdftoppm outputs (prefix-1.png ... prefix-10.png) by
// their numeric page suffix.
func sortPages(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		n, _ := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		return n
	}
	slices.SortFunc(paths, func(a, b string) int {
		return num(a) - num(b)
	})
}
