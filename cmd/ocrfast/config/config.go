// Package configcmder provides the config command for managing persistent
// ocrfast configuration stored in the .ocrfast/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent ocrfast configuration.

Configuration is stored as config.toml in the .ocrfast/ directory and provides
default values for command flags. CLI flags and OCRFAST_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  store.dir, store.backend,
  ocr.engine, ocr.language, ocr.dpi, ocr.workers, ocr.detector_url,
  ocr.default_confidence, ocr.output_dir, ocr.trial_concurrency,
  ocr.trial_timeout,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  llm.provider, llm.model, llm.base_url,
  api.listen, client.api_target, classify.min_score,
  events.provider, events.brokers, events.topic, events.dsn

Use subcommands to get, set, or list configuration values:
  ocrfast config set <key> <value>    Set a configuration value
  ocrfast config get <key>            Get a configuration value
  ocrfast config list                 List all configuration values

Examples:
  ocrfast config set ocr.engine detector
  ocrfast config set embedding.provider hashing
  ocrfast config get ocr.language
  ocrfast config list`

const configShortDesc string = "Manage persistent ocrfast configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
