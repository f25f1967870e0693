package api

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/raster"
)

// maxUploadBytes bounds request bodies, uploads included.
const maxUploadBytes = 32 << 20

// ExtractEntitiesResponse is the body of POST /extract_entities/.
type ExtractEntitiesResponse struct {
	DocumentType   doctype.Type   `json:"document_type"`
	Confidence     float64        `json:"confidence"`
	Entities       map[string]any `json:"entities"`
	OCRConfidence  float64        `json:"ocr_confidence"`
	ProcessingTime string         `json:"processing_time"`
}

// handleExtractEntities runs OCR over an uploaded document, classifies the
// text and extracts the fields expected for its type.
func (s *Server) handleExtractEntities(c *fiber.Ctx) error {
	start := time.Now()

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "file is required"})
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !raster.IsSupported(fh.Filename) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Unsupported file format. Allowed: " + strings.Join(raster.SupportedExtensions, ", "),
		})
	}

	if s.config.Processor == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "OCR is not configured"})
	}

	tmp, err := os.CreateTemp("", "ocrfast-upload-*"+ext)
	if err != nil {
		return s.processingError(c, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveFile(fh, tmpPath); err != nil {
		return s.processingError(c, err)
	}

	ctx := c.Context()
	out, err := s.config.Processor.ExtractFile(ctx, tmpPath)
	if err != nil {
		return s.processingError(c, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: "No text extracted from document"})
	}

	class := s.config.Store.Classify(ctx, out.Text)

	fields, err := s.config.Entities.Extract(ctx, out.Text, class.Type)
	if err != nil {
		return s.processingError(c, err)
	}

	elapsed := time.Since(start)
	s.logger.Info("extracted entities",
		"file", fh.Filename,
		"document_type", class.Type,
		"classification_source", class.Source,
		"extractor", s.config.Entities.Name(),
		"elapsed", elapsed,
	)

	return c.JSON(ExtractEntitiesResponse{
		DocumentType:   class.Type,
		Confidence:     round(class.Score, 3),
		Entities:       fields,
		OCRConfidence:  round(out.Confidence, 2),
		ProcessingTime: fmt.Sprintf("%.2fs", elapsed.Seconds()),
	})
}

func (s *Server) processingError(c *fiber.Ctx, err error) error {
	s.logger.Error("document processing failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: fmt.Sprintf("Processing error: %v", err),
	})
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
