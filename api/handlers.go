package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

// AddDocumentRequest is the body of POST /v1/documents.
type AddDocumentRequest struct {
	Text       string  `json:"text"`
	FilePath   string  `json:"file_path"`
	Confidence float64 `json:"confidence"`
}

// AddDocumentResponse reports where the document was stored.
type AddDocumentResponse struct {
	Position int `json:"position"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	now := time.Now()
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
	})
}

// handleStats returns the document count per type and the embedding size.
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.config.Store.Stats())
}

// handleAddDocument embeds, classifies and stores already extracted text.
func (s *Server) handleAddDocument(c *fiber.Ctx) error {
	var req AddDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	pos, err := s.config.Store.Add(c.Context(), req.Text, req.FilePath, req.Confidence)
	if err != nil {
		if errors.Is(err, store.ErrEmptyText) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("failed to add document", "file_path", req.FilePath, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to add document"})
	}

	return c.Status(fiber.StatusCreated).JSON(AddDocumentResponse{Position: pos})
}

// handleDocumentsByType lists the stored documents of the type named by the
// "type" query parameter. Types added through classify rules are listed like
// the built-in ones; a type nothing was filed under yields an empty list.
func (s *Server) handleDocumentsByType(c *fiber.Ctx) error {
	t := doctype.Type(strings.TrimSpace(c.Query("type")))
	if t == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "type parameter is required"})
	}

	docs := s.config.Store.DocumentsByType(t)
	if docs == nil {
		docs = []store.Metadata{}
	}

	return c.JSON(map[string]any{
		"document_type": t,
		"count":         len(docs),
		"documents":     docs,
	})
}
