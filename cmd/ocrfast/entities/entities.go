// Package entitiescmder provides the entities command for classifying a
// single document and extracting its structured fields.
package entitiescmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasaya1/OCRFastAPI/cmd/ocrfast/services"
	"github.com/rasaya1/OCRFastAPI/pkg/cliui"
	"github.com/rasaya1/OCRFastAPI/pkg/config"
	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/raster"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

// ErrNoText is returned when the document yields no text.
var ErrNoText = errors.New("no text extracted from document")

// Result is the JSON form of an entities run.
type Result struct {
	File                 string         `json:"file"`
	DocumentType         doctype.Type   `json:"document_type"`
	Confidence           float64        `json:"confidence"`
	ClassificationSource store.Source   `json:"classification_source"`
	Extractor            string         `json:"extractor"`
	Entities             map[string]any `json:"entities"`
	OCRConfidence        float64        `json:"ocr_confidence"`
	ProcessingTime       string         `json:"processing_time"`
}

type entitiesCommander struct {
	flags config.FlagSet

	jsonOut   bool
	engine    string
	language  string
	storeDir  string
	llmProv   string
	llmModel  string
	embedProv string
	embedDims uint

	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
	out       io.Writer
}

const entitiesLongDesc string = `Classify a document and extract its structured fields.

Images and PDFs are run through OCR; .txt files are read as they are. The
text is classified against the indexed documents (falling back to keyword
rules) and the fields expected for its type are extracted: invoice numbers,
vendors, totals, dates, parties and so on.

Extraction uses the configured LLM provider when one is set and has an API
key (see "ocrfast auth") and pattern matching otherwise.

Examples:
  ocrfast entities invoice.png
  ocrfast entities contract.pdf --llm-provider anthropic
  ocrfast entities output/receipt.txt --json`

const entitiesShortDesc string = "Extract structured fields from a document"

var entitiesFlags = []string{
	config.FlagEngine,
	config.FlagLanguage,
	config.FlagStoreDir,
	config.FlagLLMProvider,
	config.FlagLLMModel,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingDims,
}

func NewEntitiesCmd() *cobra.Command {
	cmder := &entitiesCommander{flags: config.Registry}

	cmd := &cobra.Command{
		Use:   "entities <file>",
		Short: entitiesShortDesc,
		Long:  entitiesLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, entitiesFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.logger = services.Logger(cmd)
			cmder.out = cmd.OutOrStdout()

			res, err := cmder.run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if cmder.jsonOut {
				enc := json.NewEncoder(cmder.out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			rendered, err := cliui.RenderMarkdown(Markdown(res))
			if err != nil {
				cmder.logger.Debug("markdown rendering failed", "error", err)
			}
			fmt.Fprint(cmder.out, rendered)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the result as JSON")
	config.AddStringFlag(cmd, cmder.flags, config.FlagEngine, &cmder.engine)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLanguage, &cmder.language)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStoreDir, &cmder.storeDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLLMProvider, &cmder.llmProv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLLMModel, &cmder.llmModel)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingProv, &cmder.embedProv)
	config.AddUintFlag(cmd, cmder.flags, config.FlagEmbeddingDims, &cmder.embedDims)

	return cmd
}

func (c *entitiesCommander) run(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	text, ocrConf, err := c.readText(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	s, err := services.OpenStore(ctx, c.viper, c.configDir, c.logger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	extractor, err := services.NewEntityExtractor(c.viper, c.configDir, c.logger)
	if err != nil {
		return nil, err
	}

	class := s.Classify(ctx, text)
	fields, err := extractor.Extract(ctx, text, class.Type)
	if err != nil {
		return nil, fmt.Errorf("extracting entities: %w", err)
	}

	return &Result{
		File:                 path,
		DocumentType:         class.Type,
		Confidence:           class.Score,
		ClassificationSource: class.Source,
		Extractor:            extractor.Name(),
		Entities:             fields,
		OCRConfidence:        ocrConf,
		ProcessingTime:       fmt.Sprintf("%.2fs", time.Since(start).Seconds()),
	}, nil
}

// readText returns the document text and its OCR confidence. Text files
// carry no OCR confidence.
func (c *entitiesCommander) readText(ctx context.Context, path string) (string, float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", 0, fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), 0, nil
	}

	if !raster.IsSupported(path) {
		return "", 0, fmt.Errorf("unsupported file format %q (allowed: .txt, %s)",
			filepath.Ext(path), strings.Join(raster.SupportedExtensions, ", "))
	}

	processor, err := services.NewProcessor(c.viper, c.logger)
	if err != nil {
		return "", 0, err
	}

	out, err := processor.ExtractFile(ctx, path)
	if err != nil {
		return "", 0, err
	}
	return out.Text, out.Confidence, nil
}

// Markdown renders res as a heading and a field table.
func Markdown(res *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", filepath.Base(res.File))
	fmt.Fprintf(&b, "**Type:** %s (%.3f, %s)  \n", res.DocumentType, res.Confidence, res.ClassificationSource)
	if res.OCRConfidence > 0 {
		fmt.Fprintf(&b, "**OCR confidence:** %.2f%%  \n", res.OCRConfidence)
	}
	fmt.Fprintf(&b, "**Extractor:** %s, %s\n\n", res.Extractor, res.ProcessingTime)

	if len(res.Entities) == 0 {
		b.WriteString("_No fields found._\n")
		return b.String()
	}

	keys := make([]string, 0, len(res.Entities))
	for k := range res.Entities {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	b.WriteString("| Field | Value |\n| --- | --- |\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "| %s | %s |\n", k, cell(res.Entities[k]))
	}
	return b.String()
}

func cell(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case nil:
		s = ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(data)
		}
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
