package main

import (
	"os"

	ocrfastcmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast"
)

func main() {
	cmd := ocrfastcmder.NewOcrfastCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
