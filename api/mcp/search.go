package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rasaya1/OCRFastAPI/api/search"
)

var (
	searchToolName    = "search_documents"
	searchDescription = "Search the indexed documents (invoices, receipts, contracts, purchase orders, reports) by semantic similarity. Returns the best matching documents with their type, file path, OCR confidence and a text preview."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text to find relevant documents"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, search.SearchOutput, error) {
	logger := s.config.Logger

	if input.Query == "" {
		return toolError("query is required"), search.SearchOutput{}, nil
	}

	output, err := search.Search(ctx, s.config.Store, input.Query, input.TopK, logger)
	if err != nil {
		logger.Error("MCP search failed", "error", err)
		return toolError("Search failed: %v", err), search.SearchOutput{}, nil
	}

	result, err := textResult(output)
	if err != nil {
		logger.Error("failed to marshal search output", "error", err)
		return toolError("Failed to serialize results: %v", err), search.SearchOutput{}, nil
	}
	return result, *output, nil
}
