// Package ocrfastcmder is the root ocrfast command.
package ocrfastcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/auth"
	configcmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/config"
	entitiescmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/entities"
	extractcmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/extract"
	indexcmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/index"
	initcmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/init"
	searchcmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/search"
	servecmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/serve"
	statscmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/stats"
	versioncmder "github.com/rasaya1/OCRFastAPI/cmd/version"
)

const ocrfastLongDesc string = `ocrfast extracts text from scanned documents, indexes it for
similarity search and pulls structured fields out of invoices, receipts,
contracts, purchase orders and reports.

Common workflows:
  ocrfast extract ./scans               OCR every scan into ./output
  ocrfast extract ./scans --index       ... and add the text to the store
  ocrfast index ./output --watch        Index text files as they appear
  ocrfast search "invoice from ACME"    Find similar documents
  ocrfast entities invoice.png          Classify a scan and extract fields
  ocrfast serve                         Run the HTTP API and MCP server`

const ocrfastShortDesc string = "ocrfast - document OCR, search and entity extraction"

func NewOcrfastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ocrfast",
		Short:         ocrfastShortDesc,
		Long:          ocrfastLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .ocrfast/ config directory")
	cmd.PersistentFlags().String("log-format", "auto", "Log format (auto, pretty, text, json)")

	// Add subcommands
	cmd.AddCommand(extractcmder.NewExtractCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(entitiescmder.NewEntitiesCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
