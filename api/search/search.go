// Package search provides the shared search types and logic used by the REST
// endpoint, the MCP tool and the search command.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

// DefaultTopK is used when a request asks for zero or fewer results.
const DefaultTopK = 5

// Searcher is the part of the document store a search needs.
type Searcher interface {
	SearchSimilar(ctx context.Context, query string, k int) ([]store.Result, error)
}

// SearchInput represents the input arguments for a search request.
type SearchInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult represents a single ranked document.
type SearchResult struct {
	Position      int          `json:"position"`
	ID            string       `json:"id"`
	FilePath      string       `json:"file_path"`
	DocumentType  doctype.Type `json:"document_type"`
	Score         float32      `json:"similarity_score"`
	OCRConfidence float64      `json:"confidence_score"`
	ProcessedDate string       `json:"processed_date"`
	Preview       string       `json:"text_preview"`
}

// SearchOutput represents the output of a search operation.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// Search runs a similarity search over the stored documents and returns the
// hits in descending score order.
func Search(ctx context.Context, s Searcher, query string, topK int, logger *slog.Logger) (*SearchOutput, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("search request", "query", query, "top_k", topK)

	hits, err := s.SearchSimilar(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, BuildSearchResult(hit))
	}

	return &SearchOutput{
		Query:   query,
		Results: results,
		Count:   len(results),
	}, nil
}

// BuildSearchResult converts a store hit into a SearchResult.
func BuildSearchResult(r store.Result) SearchResult {
	return SearchResult{
		Position:      r.Position,
		ID:            r.ID,
		FilePath:      r.FilePath,
		DocumentType:  r.DocumentType,
		Score:         r.Score,
		OCRConfidence: r.ConfidenceScore,
		ProcessedDate: r.ProcessedDate.Format(time.RFC3339),
		Preview:       r.TextPreview,
	}
}
