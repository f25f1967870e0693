// Package versioncmder provides the version command.
package versioncmder

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rasaya1/OCRFastAPI/pkg/utils"
)

// BuildInfo describes the running ocrfast binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	BuiltAt   string `json:"built_at"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentBuild reports the linker-stamped build metadata together with the
// toolchain and platform of the running process.
func CurrentBuild() BuildInfo {
	return BuildInfo{
		Version:   utils.Version,
		Sha:       utils.Sha,
		BuiltAt:   utils.Buildtime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

type versionCommander struct {
	asJSON bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "Displays the ocrfast version, commit and build time along with the Go toolchain and platform it was built for.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "print build information as JSON")
	return cmd
}

func (c *versionCommander) run(cmd *cobra.Command) error {
	info := CurrentBuild()
	out := cmd.OutOrStdout()

	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	_, err := fmt.Fprintf(out, "Version: %s\nSha: %s\nBuilt at: %s\nGo: %s (%s)\n",
		info.Version, info.Sha, info.BuiltAt, info.GoVersion, info.Platform)
	return err
}
