package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/rasaya1/OCRFastAPI/api/search"
	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/entities/pattern"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

// DocumentStore is the document store surface the API serves.
type DocumentStore interface {
	search.Searcher
	Add(ctx context.Context, text, filePath string, confidence float64) (int, error)
	Classify(ctx context.Context, text string) store.Classification
	DocumentsByType(t doctype.Type) []store.Metadata
	Stats() store.Stats
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the API server for extracting and querying documents
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The store is injected so that it can be shared with the indexer and
// flushed by the caller on shutdown.
func NewServer(config Config) (*Server, error) {
	if config.Store == nil {
		return nil, errors.New("document store is required")
	}
	if config.Entities == nil {
		config.Entities = pattern.NewExtractor()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             maxUploadBytes,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/health", s.handleHealth)
	app.Get("/stats", s.handleStats)
	app.Post("/extract_entities/", s.handleExtractEntities)

	app.Post("/v1/documents", s.handleAddDocument)
	app.Get("/v1/documents", s.handleDocumentsByType)
	app.Get("/v1/search", s.handleSearchEndpoint)
	app.Get("/v1/classify", s.handleClassifyEndpoint)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
