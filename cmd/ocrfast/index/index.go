// Package indexcmder provides the index command for adding text files and
// scans to the document store.
package indexcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasaya1/OCRFastAPI/cmd/ocrfast/services"
	"github.com/rasaya1/OCRFastAPI/pkg/cliui"
	"github.com/rasaya1/OCRFastAPI/pkg/config"
	"github.com/rasaya1/OCRFastAPI/pkg/indexer"
	"github.com/rasaya1/OCRFastAPI/pkg/pipeline"
)

type indexCommander struct {
	flags config.FlagSet

	pattern   string
	ocr       bool
	watch     bool
	storeDir  string
	storeBknd string
	engine    string
	language  string
	embedProv string
	embedTgt  string
	embedMdl  string
	embedDims uint
	events    string
	brokers   string

	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
	out       io.Writer
}

const indexLongDesc string = `Index documents into the document store.

Reads every file in <dir> matching --pattern (default *.txt), classifies it
and adds its embedding to the store. Metadata sidecars written by
"ocrfast extract" are skipped. With --ocr, matching images and PDFs are run
through OCR first.

With --watch the directory is indexed once and then watched; new or changed
files are indexed as they appear until the command is interrupted. The
store is saved on exit.

Examples:
  ocrfast index ./output
  ocrfast index ./scans --ocr --pattern "*.png"
  ocrfast index ./output --watch`

const indexShortDesc string = "Index documents into the document store"

var indexFlags = []string{
	config.FlagStoreDir,
	config.FlagStoreBackend,
	config.FlagEngine,
	config.FlagLanguage,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
}

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{flags: config.Registry}

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, indexFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.logger = services.Logger(cmd)
			cmder.out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.pattern, "pattern", "p", indexer.DefaultPattern, "Glob pattern selecting files to index")
	cmd.Flags().BoolVar(&cmder.ocr, "ocr", false, "Run images and PDFs through OCR before indexing")
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Keep watching the directory for new files")
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreDir, &cmder.storeDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreBackend, &cmder.storeBknd)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEngine, &cmder.engine)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLanguage, &cmder.language)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingProv, &cmder.embedProv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingTgt, &cmder.embedTgt)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingModel, &cmder.embedMdl)
	config.AddUintFlag(cmd, cmder.flags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsProvider, &cmder.events)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsBrokers, &cmder.brokers)

	return cmd
}

func (c *indexCommander) run(ctx context.Context, dir string) error {
	s, err := services.OpenStore(ctx, c.viper, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	var processor *pipeline.Processor
	if c.ocr {
		processor, err = services.NewProcessor(c.viper, c.logger)
		if err != nil {
			return err
		}
	}

	idx, err := indexer.New(indexer.Config{
		Store:     s,
		Processor: processor,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	before := s.Len()
	pattern := c.pattern
	if c.ocr && pattern == indexer.DefaultPattern {
		pattern = "*"
	}

	var runErr error
	if c.watch {
		runErr = c.watchDir(ctx, idx, dir, pattern)
	} else {
		var n int
		n, runErr = idx.IndexDirectory(ctx, dir, pattern)
		if runErr == nil {
			fmt.Fprintf(c.out, "\n  %s Indexed %d document(s) from %s\n",
				cliui.SuccessMark, n, cliui.NameStyle.Render(dir))
		}
	}

	if err := s.Save(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	fmt.Fprintf(c.out, "  %s %d document(s) in store (%d new)\n\n",
		cliui.KeyStyle.Render("Store:"), s.Len(), s.Len()-before)
	return nil
}

// watchDir starts the watcher before the initial pass so files written
// during that pass are still picked up.
func (c *indexCommander) watchDir(ctx context.Context, idx *indexer.Indexer, dir, pattern string) error {
	w, err := idx.StartWatch(dir, pattern)
	if err != nil {
		return err
	}
	defer w.Close()

	n, err := idx.IndexDirectory(ctx, dir, pattern)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Indexed %d document(s), watching %s %s\n\n",
		cliui.SuccessMark, n,
		cliui.NameStyle.Render(dir),
		cliui.DimStyle.Render("(Ctrl+C to stop)"),
	)
	return w.Run(ctx)
}
