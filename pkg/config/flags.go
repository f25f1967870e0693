package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --engine
// on both "ocrfast extract" and "ocrfast index").
type Flag struct {
	// Name is the long flag name (e.g. "engine").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "ocr.engine").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStoreDir       = "store-dir"
	FlagStoreBackend   = "store-backend"
	FlagEngine         = "engine"
	FlagLanguage       = "language"
	FlagWorkers        = "workers"
	FlagDetectorURL    = "detector-url"
	FlagOutputDir      = "output-dir"
	FlagEmbeddingProv  = "embedding-provider"
	FlagEmbeddingTgt   = "embedding-target"
	FlagEmbeddingModel = "embedding-model"
	FlagEmbeddingDims  = "embedding-dimensions"
	FlagLLMProvider    = "llm-provider"
	FlagLLMModel       = "llm-model"
	FlagAPIListen      = "listen"
	FlagAPITarget      = "api-target"
	FlagEventsProvider = "events-provider"
	FlagEventsBrokers  = "events-brokers"
)

// Registry is the flag set shared by the ocrfast commands.
var Registry = FlagSet{
	FlagStoreDir:       {Name: "store-dir", ViperKey: "store.dir", Description: "Directory holding the document index and metadata (default: .ocrfast/store)"},
	FlagStoreBackend:   {Name: "store-backend", ViperKey: "store.backend", Description: "Similarity index backend (flat, sqlite-vec)"},
	FlagEngine:         {Name: "engine", Shorthand: "e", ViperKey: "ocr.engine", Description: "OCR engine (tesseract, detector)"},
	FlagLanguage:       {Name: "language", ViperKey: "ocr.language", Description: "OCR language code"},
	FlagWorkers:        {Name: "workers", Shorthand: "w", ViperKey: "ocr.workers", Description: "Number of parallel OCR workers"},
	FlagDetectorURL:    {Name: "detector-url", ViperKey: "ocr.detector_url", Description: "Detection OCR service URL"},
	FlagOutputDir:      {Name: "output-dir", Shorthand: "o", ViperKey: "ocr.output_dir", Description: "Directory for extracted text files"},
	FlagEmbeddingProv:  {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, hashing)"},
	FlagEmbeddingTgt:   {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel: {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:  {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	FlagLLMProvider:    {Name: "llm-provider", ViperKey: "llm.provider", Description: "Completion provider for entity extraction (none, openai, anthropic, ollama)"},
	FlagLLMModel:       {Name: "llm-model", ViperKey: "llm.model", Description: "Completion model name"},
	FlagAPIListen:      {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	FlagAPITarget:      {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "ocrfast API server URL"},
	FlagEventsProvider: {Name: "events-provider", ViperKey: "events.provider", Description: "Document event publisher (none, kafka, postgres)"},
	FlagEventsBrokers:  {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka broker addresses"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
