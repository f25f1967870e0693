package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

var (
	classifyToolName    = "classify_document"
	classifyDescription = "Classify document text as invoice, receipt, contract, purchase_order, report or document. Uses the most similar indexed document and falls back to keyword rules."

	statsToolName    = "document_stats"
	statsDescription = "Report how many documents are indexed, the count per document type and the embedding dimension."
)

// ClassifyInput represents the input arguments for the classify tool.
type ClassifyInput struct {
	Text string `json:"text" jsonschema:"the document text to classify"`
}

// StatsInput takes no arguments.
type StatsInput struct{}

func (s *Server) handleClassify(ctx context.Context, _ *mcp.CallToolRequest, input ClassifyInput) (*mcp.CallToolResult, store.Classification, error) {
	if input.Text == "" {
		return toolError("text is required"), store.Classification{}, nil
	}

	c := s.config.Store.Classify(ctx, input.Text)
	s.config.Logger.Debug("MCP classify request", "type", c.Type, "source", c.Source)

	result, err := textResult(c)
	if err != nil {
		return toolError("Failed to serialize classification: %v", err), store.Classification{}, nil
	}
	return result, c, nil
}

func (s *Server) handleStats(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, store.Stats, error) {
	stats := s.config.Store.Stats()

	result, err := textResult(stats)
	if err != nil {
		return toolError("Failed to serialize stats: %v", err), store.Stats{}, nil
	}
	return result, stats, nil
}
