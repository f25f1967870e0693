// ocrfast CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/ocrfast/internal/dagger"
)

// Ocrfast is the main module for the ocrfast CI/CD pipeline
type Ocrfast struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new ocrfast CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", "output", ".ocrfast"]
	source *dagger.Directory,
) *Ocrfast {
	return &Ocrfast{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc, the
// tesseract, leptonica and sqlite headers, CGO enabled, and the project
// source mounted.
//
// It is the shared foundation for tests, builds, and linting.
func (o *Ocrfast) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{
			"apt-get", "install", "-y",
			"gcc", "g++", "libsqlite3-dev",
			"libtesseract-dev", "libleptonica-dev", "tesseract-ocr-eng",
		}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", o.Source)
}

// Test runs the ocrfast unit tests via "go test"
func (o *Ocrfast) Test(ctx context.Context) (string, error) {
	return o.goContainer("").
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
