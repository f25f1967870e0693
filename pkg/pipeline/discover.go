package pipeline

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr/raster"
)

// Discover walks root recursively and returns the supported files, sorted.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && raster.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	slices.Sort(files)
	return files, nil
}
