// Package extractcmder provides the extract command for batch OCR over
// image and PDF files.
package extractcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasaya1/OCRFastAPI/cmd/ocrfast/services"
	"github.com/rasaya1/OCRFastAPI/pkg/cliui"
	"github.com/rasaya1/OCRFastAPI/pkg/config"
	"github.com/rasaya1/OCRFastAPI/pkg/pipeline"
)

type extractCommander struct {
	flags config.FlagSet

	engine     string
	language   string
	workers    uint
	outputDir  string
	index      bool
	detector   string
	storeDir   string
	storeBknd  string
	configDir  string
	viper      *viper.Viper
	logger     *slog.Logger
	out        io.Writer
	outputLock sync.Mutex
}

const extractLongDesc string = `Extract text from scanned documents.

Each argument is an image (png, jpg, jpeg, tiff, bmp), a PDF or a directory
that is searched recursively for supported files. Every document gets a
<name>.txt with the extracted text and a <name>_metadata.txt recording the
source, engine, language and confidence in the output directory.

Files are processed in parallel by --workers workers. With --index the
extracted text is also added to the document store for search.

Examples:
  ocrfast extract scan.png
  ocrfast extract ./scans -o ./text -w 8
  ocrfast extract ./scans --engine detector --language deu
  ocrfast extract ./scans --index`

const extractShortDesc string = "Extract text from images and PDFs"

var extractFlags = []string{
	config.FlagEngine,
	config.FlagLanguage,
	config.FlagWorkers,
	config.FlagOutputDir,
	config.FlagDetectorURL,
	config.FlagStoreDir,
	config.FlagStoreBackend,
}

func NewExtractCmd() *cobra.Command {
	cmder := &extractCommander{flags: config.Registry}

	cmd := &cobra.Command{
		Use:   "extract <path>...",
		Short: extractShortDesc,
		Long:  extractLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, extractFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.logger = services.Logger(cmd)
			cmder.out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, args)
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagEngine, &cmder.engine)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLanguage, &cmder.language)
	config.AddUintFlag(cmd, cmder.flags, config.FlagWorkers, &cmder.workers)
	config.AddStringFlag(cmd, cmder.flags, config.FlagOutputDir, &cmder.outputDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagDetectorURL, &cmder.detector)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreDir, &cmder.storeDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreBackend, &cmder.storeBknd)
	cmd.Flags().BoolVar(&cmder.index, "index", false, "Add extracted text to the document store")

	return cmd
}

func (c *extractCommander) run(ctx context.Context, args []string) error {
	paths, err := collect(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(c.out, cliui.DimStyle.Render("No supported documents found."))
		return nil
	}

	processor, err := services.NewProcessor(c.viper, c.logger)
	if err != nil {
		return err
	}

	cfg := &pipeline.Config{
		Processor:  processor,
		OutputDir:  c.viper.GetString("ocr.output_dir"),
		Language:   c.viper.GetString("ocr.language"),
		NumWorkers: c.viper.GetUint("ocr.workers"),
		OnResult:   c.printResult,
		Logger:     c.logger,
	}

	if c.index {
		s, err := services.OpenStore(ctx, c.viper, c.configDir, c.logger)
		if err != nil {
			return err
		}
		defer s.Close()
		cfg.Sink = s

		defer func() {
			// Persist whatever was indexed, even after an interrupt.
			if err := s.Save(context.WithoutCancel(ctx)); err != nil {
				c.logger.Error("saving document store", "error", err)
			}
		}()
	}

	fmt.Fprintf(c.out, "\n  %s %d document(s) with %s using %d worker(s)\n\n",
		cliui.HeaderStyle.Render("Extracting"),
		len(paths),
		cliui.NameStyle.Render(processor.Engine()),
		cfg.NumWorkers,
	)

	start := time.Now()
	summary, err := pipeline.Run(ctx, cfg, paths)

	fmt.Fprintf(c.out, "\n  %s %d done, %d empty, %d failed in %s\n",
		cliui.HeaderStyle.Render("Summary"),
		summary.Done, summary.Empty, summary.Failed,
		cliui.FormatDuration(time.Since(start)),
	)
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Output:"), cliui.DimStyle.Render(cfg.OutputDir))

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", summary.Failed, summary.Total())
	}
	return nil
}

// printResult is called from the worker goroutines.
func (c *extractCommander) printResult(res pipeline.Result) {
	c.outputLock.Lock()
	defer c.outputLock.Unlock()

	name := filepath.Base(res.Path)

	switch res.Status {
	case pipeline.StatusDone:
		line := fmt.Sprintf("  %s %s %s", cliui.SuccessMark, name,
			cliui.ScoreStyle.Render(fmt.Sprintf("(%.1f%%)", res.Confidence)))
		if res.Position >= 0 {
			line += cliui.DimStyle.Render(fmt.Sprintf(" indexed #%d", res.Position))
		}
		fmt.Fprintln(c.out, line)
	case pipeline.StatusEmpty:
		fmt.Fprintf(c.out, "  %s %s %s\n", cliui.WarnStyle.Render("○"), name, cliui.DimStyle.Render("no text"))
	case pipeline.StatusFailed:
		fmt.Fprintf(c.out, "  %s %s %s\n", cliui.FailMark, name, cliui.DimStyle.Render(res.Err.Error()))
	}
}

// collect expands directories into their supported documents and keeps
// explicit file arguments as given.
func collect(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}

		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		found, err := pipeline.Discover(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}
