// Package vectorutils selects a vector.Backend by configured name.
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/rasaya1/OCRFastAPI/pkg/vector"
	"github.com/rasaya1/OCRFastAPI/pkg/vector/flat"
	"github.com/rasaya1/OCRFastAPI/pkg/vector/sqlitevec"
)

type NewBackendOpts struct {
	ProviderType string
	Logger       *slog.Logger
}

func NewBackend(o *NewBackendOpts) (vector.Backend, error) {
	switch o.ProviderType {
	case "", "flat":
		return flat.Backend{}, nil
	case "sqlite-vec", "sqlite":
		return sqlitevec.Backend{Logger: o.Logger}, nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
