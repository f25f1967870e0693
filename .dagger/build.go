package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/ocrfast/internal/dagger"
)

// Build and return directory of go binaries.
//
// gosseract links against libtesseract, so each platform is built natively
// in its own container rather than cross compiled.
func (o *Ocrfast) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	for _, platform := range platforms {
		path := string(platform) + "/"

		build := o.goContainer(platform).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/ocrfast"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (o *Ocrfast) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/rasaya1/OCRFastAPI/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/rasaya1/OCRFastAPI/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/rasaya1/OCRFastAPI/pkg/utils.Buildtime=%s'", buildtime),
	}

	return o.Build(ctx, strings.Join(ldflags, " "))
}
