// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/rasaya1/OCRFastAPI/pkg/embeddings"
	"github.com/rasaya1/OCRFastAPI/pkg/embeddings/hashing"
	"github.com/rasaya1/OCRFastAPI/pkg/embeddings/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case "hashing":
		return hashing.NewEmbedder(hashing.Config{
			Dimensions: o.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
