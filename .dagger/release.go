package main

import (
	"context"
	"fmt"
	"strings"

	"dagger/ocrfast/internal/dagger"
)

// Package bundles each platform binary from BuildRelease into
// ocrfast_<version>_<os>_<arch>.tar.gz next to a SHA256SUMS file.
func (o *Ocrfast) Package(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,
) *dagger.Directory {
	binaries := o.BuildRelease(ctx, version, commit)

	script := strings.Join([]string{
		"set -eu",
		"mkdir -p /dist",
		"for dir in /bin-in/*/*/; do",
		`  platform=$(echo "${dir#/bin-in/}" | tr '/' '_' | sed 's/_$//')`,
		fmt.Sprintf(`  tar -C "$dir" -czf "/dist/ocrfast_%s_${platform}.tar.gz" ocrfast`, version),
		"done",
		"cd /dist && sha256sum *.tar.gz > SHA256SUMS",
	}, "\n")

	return dag.Container().
		From("debian:bookworm-slim").
		WithDirectory("/bin-in", binaries).
		WithExec([]string{"sh", "-c", script}).
		Directory("/dist")
}

// Release packages the binaries for version and publishes them as a GitHub
// release of repo. Prereleases are marked when version carries a suffix
// such as "-rc.1".
func (o *Ocrfast) Release(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA the release tag points at
	commit string,

	// GitHub repository in owner/name form
	// +default="rasaya1/OCRFastAPI"
	repo string,

	// GitHub token allowed to create releases
	token *dagger.Secret,
) (*dagger.Directory, error) {
	dist := o.Package(ctx, version, commit)

	args := []string{
		"gh", "release", "create", version,
		"--repo", repo,
		"--target", commit,
		"--title", "ocrfast " + version,
		"--generate-notes",
	}
	if strings.Contains(version, "-") {
		args = append(args, "--prerelease")
	}

	entries, err := dist.Entries(ctx)
	if err != nil {
		return dist, fmt.Errorf("listing release artifacts: %w", err)
	}
	for _, name := range entries {
		args = append(args, "/dist/"+name)
	}

	_, err = dag.Container().
		From("ghcr.io/cli/cli:latest").
		WithSecretVariable("GH_TOKEN", token).
		WithDirectory("/dist", dist).
		WithExec(args).
		Sync(ctx)
	if err != nil {
		return dist, fmt.Errorf("publishing release %s: %w", version, err)
	}

	return dist, nil
}
