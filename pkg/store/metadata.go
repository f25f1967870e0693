package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
)

const metadataVersion = 1

// Metadata describes one stored document.
type Metadata struct {
	ID              string       `json:"id"`
	FilePath        string       `json:"file_path"`
	DocumentType    doctype.Type `json:"document_type"`
	ConfidenceScore float64      `json:"confidence_score"`
	ProcessedDate   time.Time    `json:"processed_date"`
	TextPreview     string       `json:"text_preview"`
}

// Result is a search hit: the document's metadata with its position and
// similarity score.
type Result struct {
	Metadata
	Position int     `json:"position"`
	Score    float32 `json:"similarity_score"`
}

// Stats summarizes the store contents.
type Stats struct {
	TotalDocuments     int                  `json:"total_documents"`
	DocumentTypes      map[doctype.Type]int `json:"document_types"`
	EmbeddingDimension int                  `json:"embedding_dimension"`
}

type metadataFile struct {
	Version   int        `json:"version"`
	Documents []Metadata `json:"documents"`
}

func readMetadata(path string) ([]Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var mf metadataFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: decoding metadata: %v", ErrInconsistent, err)
	}
	if mf.Version != metadataVersion {
		return nil, fmt.Errorf("%w: unsupported metadata version %d", ErrInconsistent, mf.Version)
	}
	if mf.Documents == nil {
		mf.Documents = []Metadata{}
	}
	return mf.Documents, nil
}

func writeMetadata(path string, docs []Metadata) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(metadataFile{Version: metadataVersion, Documents: docs}); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
