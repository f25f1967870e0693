// Package statscmder provides the stats command summarizing the document
// store.
package statscmder

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasaya1/OCRFastAPI/cmd/ocrfast/services"
	"github.com/rasaya1/OCRFastAPI/pkg/cliui"
	"github.com/rasaya1/OCRFastAPI/pkg/config"
	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

type statsCommander struct {
	flags config.FlagSet

	jsonOut   bool
	storeDir  string
	storeBknd string

	configDir string
	viper     *viper.Viper
}

const statsLongDesc string = `Show document store statistics.

Prints the number of indexed documents, the count per document type and
the embedding dimension of the store.

Examples:
  ocrfast stats
  ocrfast stats --json`

const statsShortDesc string = "Show document store statistics"

var statsFlags = []string{
	config.FlagStoreDir,
	config.FlagStoreBackend,
}

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{flags: config.Registry}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, statsFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := services.Logger(cmd)

			s, err := services.OpenStore(cmd.Context(), cmder.viper, cmder.configDir, log)
			if err != nil {
				return err
			}
			defer s.Close()

			if cmder.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s.Stats())
			}

			dir, _ := services.StoreDir(cmder.viper, cmder.configDir)
			printStats(cmd.OutOrStdout(), dir, s.Stats())
			return nil
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print statistics as JSON")
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreDir, &cmder.storeDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreBackend, &cmder.storeBknd)

	return cmd
}

func printStats(w io.Writer, dir string, st store.Stats) {
	fmt.Fprintf(w, "\n  %s %s\n\n", cliui.HeaderStyle.Render("Document store"), cliui.DimStyle.Render(dir))
	fmt.Fprintf(w, "  %s %d\n", cliui.KeyStyle.Render("Documents:"), st.TotalDocuments)
	fmt.Fprintf(w, "  %s %d\n", cliui.KeyStyle.Render("Embedding dimension:"), st.EmbeddingDimension)

	if len(st.DocumentTypes) == 0 {
		fmt.Fprintln(w)
		return
	}

	types := make([]doctype.Type, 0, len(st.DocumentTypes))
	for t := range st.DocumentTypes {
		types = append(types, t)
	}
	slices.Sort(types)

	fmt.Fprintf(w, "\n  %s\n", cliui.KeyStyle.Render("By type:"))
	for _, t := range types {
		fmt.Fprintf(w, "    %s %d\n", cliui.TypeStyle.Render(fmt.Sprintf("%-16s", t)), st.DocumentTypes[t])
	}
	fmt.Fprintln(w)
}
