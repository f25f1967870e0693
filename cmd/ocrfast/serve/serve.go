// Package servecmder provides the serve command running the HTTP API and the
// MCP server over the document store.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasaya1/OCRFastAPI/api"
	"github.com/rasaya1/OCRFastAPI/api/mcp"
	"github.com/rasaya1/OCRFastAPI/cmd/ocrfast/services"
	"github.com/rasaya1/OCRFastAPI/pkg/config"
	"github.com/rasaya1/OCRFastAPI/pkg/dotdir"
	"github.com/rasaya1/OCRFastAPI/pkg/logger"
	"github.com/rasaya1/OCRFastAPI/pkg/pipeline"
)

type ServeCommander struct {
	flags config.FlagSet

	listen    string
	engine    string
	language  string
	detector  string
	storeDir  string
	storeBknd string
	embedProv string
	embedTgt  string
	embedMdl  string
	embedDims uint
	llmProv   string
	llmModel  string
	events    string
	brokers   string
	noOCR     bool
	noMCP     bool

	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
}

const serveLongDesc string = `Run the ocrfast API server.

Serves document search, classification and entity extraction over HTTP
and exposes the same store to agents through an MCP endpoint at /mcp.

Routes:
  GET  /ping, /health, /stats
  POST /extract_entities/          multipart upload, field "file"
  POST /v1/documents               index text
  GET  /v1/documents?type=invoice  list documents by type
  GET  /v1/search?query=&top_k=    similarity search
  GET  /v1/classify?text=          classify text
  *    /mcp                        MCP streamable HTTP

Logs are written to the terminal and, as JSON, to ocrfast.log in the
.ocrfast/ directory. The store is saved on shutdown.

Examples:
  ocrfast serve
  ocrfast serve --listen :9000 --engine detector
  ocrfast serve --no-ocr --events-provider kafka --events-brokers kafka:9092`

const serveShortDesc string = "Run the ocrfast API and MCP server"

var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagEngine,
	config.FlagLanguage,
	config.FlagDetectorURL,
	config.FlagStoreDir,
	config.FlagStoreBackend,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProvider,
	config.FlagLLMModel,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{flags: config.Registry}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			closeLog, err := cmder.setupLogger(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEngine, &cmder.engine)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLanguage, &cmder.language)
	config.AddStringFlag(cmd, cmder.flags, config.FlagDetectorURL, &cmder.detector)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreDir, &cmder.storeDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreBackend, &cmder.storeBknd)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingProv, &cmder.embedProv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingTgt, &cmder.embedTgt)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingModel, &cmder.embedMdl)
	config.AddUintFlag(cmd, cmder.flags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLLMProvider, &cmder.llmProv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLLMModel, &cmder.llmModel)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsProvider, &cmder.events)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsBrokers, &cmder.brokers)
	cmd.Flags().BoolVar(&cmder.noOCR, "no-ocr", false, "Disable /extract_entities/ (no OCR engine required)")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP endpoint")

	return cmd
}

// setupLogger combines the terminal logger with a JSON logger appending to
// the service log file.
func (c *ServeCommander) setupLogger(cmd *cobra.Command) (func(), error) {
	console := services.Logger(cmd)

	path, err := dotdir.NewManager().LogFile(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving log file: %w", err)
	}
	debug, _ := cmd.Flags().GetBool("debug")
	file, closeFile, err := logger.NewFile(path, logger.WithDebug(debug))
	if err != nil {
		return nil, err
	}

	c.logger = logger.Multi(console, file)
	return func() { _ = closeFile() }, nil
}

func (c *ServeCommander) run(ctx context.Context) error {
	s, err := services.OpenStore(ctx, c.viper, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	var processor *pipeline.Processor
	if !c.noOCR {
		processor, err = services.NewProcessor(c.viper, c.logger)
		if err != nil {
			return err
		}
	}

	extractor, err := services.NewEntityExtractor(c.viper, c.configDir, c.logger)
	if err != nil {
		return err
	}

	apiConfig := api.Config{
		ListenAddr: c.viper.GetString("api.listen"),
		Store:      s,
		Processor:  processor,
		Entities:   extractor,
		Logger:     c.logger,
	}

	if !c.noMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{Store: s, Logger: c.logger})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}
		apiConfig.MCPHandler = mcpServer.Handler()
	}

	server, err := api.NewServer(apiConfig)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("serving documents",
		"listen", apiConfig.ListenAddr,
		"documents", s.Len(),
		"ocr", processor != nil,
		"mcp", apiConfig.MCPHandler != nil,
		"extractor", extractor.Name(),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		if err := server.Shutdown(); err != nil {
			c.logger.Error("API server shutdown", "error", err)
		}
	}

	if err := s.Save(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("saving document store", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
