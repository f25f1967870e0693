// Package services builds the long-lived ocrfast components (logger,
// recognizer, OCR processor, document store, entity extractor) from the
// resolved viper configuration shared by the commands.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasaya1/OCRFastAPI/pkg/completion"
	"github.com/rasaya1/OCRFastAPI/pkg/credentials"
	"github.com/rasaya1/OCRFastAPI/pkg/dotdir"
	embeddingutils "github.com/rasaya1/OCRFastAPI/pkg/embeddings/utils"
	"github.com/rasaya1/OCRFastAPI/pkg/entities"
	"github.com/rasaya1/OCRFastAPI/pkg/eventstream"
	"github.com/rasaya1/OCRFastAPI/pkg/eventstream/kafka"
	"github.com/rasaya1/OCRFastAPI/pkg/eventstream/nop"
	"github.com/rasaya1/OCRFastAPI/pkg/eventstream/postgres"
	"github.com/rasaya1/OCRFastAPI/pkg/logger"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/detector"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/raster"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/tesseract"
	"github.com/rasaya1/OCRFastAPI/pkg/pipeline"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
	vectorutils "github.com/rasaya1/OCRFastAPI/pkg/vector/utils"
)

// Engine names accepted by ocr.engine.
const (
	EngineTesseract = tesseract.EngineName
	EngineDetector  = detector.EngineName
)

// Logger builds the command logger from the persistent --debug and
// --log-format flags. An unknown format falls back to auto.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	raw, _ := cmd.Flags().GetString("log-format")

	format, err := logger.ParseFormat(raw)
	if err != nil {
		format = logger.FormatAuto
	}

	return logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(format),
		logger.WithOutput(cmd.ErrOrStderr()),
	)
}

// NewRecognizer returns the recognition backend named by ocr.engine.
func NewRecognizer(v *viper.Viper, log *slog.Logger) (ocr.Recognizer, error) {
	lang := v.GetString("ocr.language")

	switch engine := strings.ToLower(v.GetString("ocr.engine")); engine {
	case "", EngineTesseract:
		return tesseract.NewRecognizer(tesseract.Config{Language: lang}), nil
	case EngineDetector:
		return detector.NewRecognizer(detector.Config{
			BaseURL:  v.GetString("ocr.detector_url"),
			Language: lang,
			Logger:   log,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %q (available: %s, %s)", engine, EngineTesseract, EngineDetector)
	}
}

// NewProcessor wires the rasterizer, the adaptive extractor and the
// configured recognizer into a pipeline.Processor.
func NewProcessor(v *viper.Viper, log *slog.Logger) (*pipeline.Processor, error) {
	rec, err := NewRecognizer(v, log)
	if err != nil {
		return nil, err
	}

	return pipeline.NewProcessor(pipeline.ProcessorConfig{
		Loader: raster.New(raster.Config{
			DPI:    v.GetInt("ocr.dpi"),
			Logger: log,
		}),
		Extractor:  ocr.NewExtractor(ExtractorConfig(v, log)),
		Recognizer: rec,
		Logger:     log,
	})
}

// ExtractorConfig reads the adaptive extractor settings from the ocr.*
// keys.
func ExtractorConfig(v *viper.Viper, log *slog.Logger) ocr.Config {
	return ocr.Config{
		DefaultConfidence: v.GetFloat64("ocr.default_confidence"),
		TrialConcurrency:  v.GetInt("ocr.trial_concurrency"),
		TrialTimeout:      v.GetDuration("ocr.trial_timeout"),
		Logger:            log,
	}
}

// StoreDir resolves the store directory: store.dir when set, otherwise the
// store directory under the resolved .ocrfast/ directory.
func StoreDir(v *viper.Viper, configDir string) (string, error) {
	if dir := strings.TrimSpace(v.GetString("store.dir")); dir != "" {
		return dir, nil
	}
	return dotdir.NewManager().StoreDir(configDir)
}

// NewPublisher returns the document event publisher named by
// events.provider.
func NewPublisher(ctx context.Context, v *viper.Viper, log *slog.Logger) (eventstream.Publisher, error) {
	switch p := strings.ToLower(v.GetString("events.provider")); p {
	case "", "none":
		return nop.NewPublisher(log), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: kafka.SplitBrokers(v.GetString("events.brokers")),
			Topic:   v.GetString("events.topic"),
			Logger:  log,
		})
	case "postgres":
		return postgres.NewPublisher(ctx, postgres.Config{
			DSN:    v.GetString("events.dsn"),
			Logger: log,
		})
	default:
		return nil, fmt.Errorf("unsupported events provider: %q", p)
	}
}

// OpenStore builds the embedder, the index backend and the publisher and
// opens the document store. Closing the store releases all three.
func OpenStore(ctx context.Context, v *viper.Viper, configDir string, log *slog.Logger) (*store.Store, error) {
	dir, err := StoreDir(v, configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving store directory: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: v.GetString("embedding.provider"),
		TargetURL:    v.GetString("embedding.target"),
		Model:        v.GetString("embedding.model"),
		Dimensions:   v.GetUint("embedding.dimensions"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	backend, err := vectorutils.NewBackend(&vectorutils.NewBackendOpts{
		ProviderType: v.GetString("store.backend"),
		Logger:       log,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	publisher, err := NewPublisher(ctx, v, log)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	cfg := store.Config{
		Dir:       dir,
		Backend:   backend,
		Embedder:  embedder,
		Publisher: publisher,
		Logger:    log,
	}
	if v.IsSet("classify.min_score") {
		minScore := v.GetFloat64("classify.min_score")
		cfg.MinClassifyScore = &minScore
	}

	s, err := store.Open(ctx, cfg)
	if err != nil {
		_ = embedder.Close()
		_ = publisher.Close()
		return nil, fmt.Errorf("opening document store: %w", err)
	}
	return s, nil
}

// NewEntityExtractor selects the LLM extractor when llm.provider is set and
// has credentials, and the pattern extractor otherwise.
func NewEntityExtractor(v *viper.Viper, configDir string, log *slog.Logger) (entities.Extractor, error) {
	creds, err := credentials.NewManager(configDir)
	if err != nil {
		log.Warn("could not load stored credentials", "error", err)
		creds = nil
	}

	return entities.New(entities.Config{
		Completion: completion.Config{
			Provider:    v.GetString("llm.provider"),
			Model:       v.GetString("llm.model"),
			BaseURL:     v.GetString("llm.base_url"),
			Credentials: creds,
		},
		Logger: log,
	})
}
