package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
)

// Outputs names the files written for one input.
type Outputs struct {
	TextFile     string
	MetadataFile string
}

// OutputPaths returns <dir>/<stem>.txt and <dir>/<stem>_metadata.txt for src.
func OutputPaths(dir, src string) Outputs {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return Outputs{
		TextFile:     filepath.Join(dir, stem+".txt"),
		MetadataFile: filepath.Join(dir, stem+"_metadata.txt"),
	}
}

// WriteOutputs writes the extracted text and its metadata sidecar.
func WriteOutputs(dir, src, engine, language string, out ocr.Outcome) (Outputs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Outputs{}, fmt.Errorf("creating output directory: %w", err)
	}

	paths := OutputPaths(dir, src)
	if err := os.WriteFile(paths.TextFile, []byte(out.Text), 0o644); err != nil {
		return Outputs{}, fmt.Errorf("writing text: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", filepath.Base(src))
	fmt.Fprintf(&b, "OCR Engine: %s\n", engine)
	fmt.Fprintf(&b, "Confidence Score: %.2f%%\n", out.Confidence)
	fmt.Fprintf(&b, "Language: %s\n", language)

	if err := os.WriteFile(paths.MetadataFile, []byte(b.String()), 0o644); err != nil {
		return Outputs{}, fmt.Errorf("writing metadata: %w", err)
	}
	return paths, nil
}
