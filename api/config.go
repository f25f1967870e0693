// Package api provides the HTTP API server for extracting, indexing and
// querying documents.
package api

import (
	"log/slog"
	"net/http"

	"github.com/rasaya1/OCRFastAPI/pkg/entities"
	"github.com/rasaya1/OCRFastAPI/pkg/pipeline"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// Store holds the indexed documents. Required.
	Store DocumentStore

	// Processor runs OCR for /extract_entities/. Optional; the route
	// answers 503 without it.
	Processor *pipeline.Processor

	// Entities extracts fields for /extract_entities/. Defaults to the
	// pattern extractor.
	Entities entities.Extractor

	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler

	Logger *slog.Logger
}
