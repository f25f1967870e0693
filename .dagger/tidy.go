package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/ocrfast/internal/dagger"
)

// CheckModules fails when go.mod or go.sum would change under "go mod tidy",
// or when a downloaded module no longer matches its go.sum hash.
//
// +check
func (o *Ocrfast) CheckModules(ctx context.Context) (string, error) {
	ctr := o.goContainer("")

	if _, err := ctr.WithExec([]string{"go", "mod", "tidy", "-diff"}).Sync(ctx); err != nil {
		var e *dagger.ExecError
		if errors.As(err, &e) {
			return "", fmt.Errorf("go.mod or go.sum are not tidy, run 'go mod tidy':\n\n%s", e.Stdout)
		}
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}

	out, err := ctr.WithExec([]string{"go", "mod", "verify"}).Stdout(ctx)
	if err != nil {
		var e *dagger.ExecError
		if errors.As(err, &e) {
			return "", fmt.Errorf("module cache does not match go.sum:\n\n%s%s", e.Stdout, e.Stderr)
		}
		return "", fmt.Errorf("running go mod verify: %w", err)
	}

	return out, nil
}
