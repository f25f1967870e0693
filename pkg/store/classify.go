package store

import (
	"context"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
)

// Source records which path produced a Classification.
type Source string

const (
	SourceSimilarity    Source = "similarity"
	SourceKeyword       Source = "keyword"
	SourceKeywordOnFail Source = "keyword_fallback"
)

const (
	// keywordConfidence is reported when no similar document was accepted.
	keywordConfidence = 0.5

	// keywordFailureConfidence is reported when the similarity search failed.
	keywordFailureConfidence = 0.3
)

// Classification is the outcome of Classify.
type Classification struct {
	Type   doctype.Type `json:"document_type"`
	Score  float64      `json:"confidence"`
	Source Source       `json:"source"`
}

// Classify labels text with the type of its most similar stored document.
// When the store has no hit, or MinClassifyScore is set and the hit scores
// below it, it falls back to the keyword rules with score 0.5, and when the
// search itself fails it falls back with score 0.3. It never returns an error.
func (s *Store) Classify(ctx context.Context, text string) Classification {
	results, err := s.SearchSimilar(ctx, text, 1)
	if err != nil {
		s.logger.Warn("similarity classification failed, using keyword rules", "error", err)
		return Classification{
			Type:   doctype.DetectWith(s.rules, text),
			Score:  keywordFailureConfidence,
			Source: SourceKeywordOnFail,
		}
	}

	if len(results) > 0 && float64(results[0].Score) >= s.minScore {
		return Classification{
			Type:   results[0].DocumentType,
			Score:  float64(results[0].Score),
			Source: SourceSimilarity,
		}
	}

	return Classification{
		Type:   doctype.DetectWith(s.rules, text),
		Score:  keywordConfidence,
		Source: SourceKeyword,
	}
}
