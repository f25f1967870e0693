package config

const (
	defaultStoreBackend = "flat"

	defaultOCREngine            = "tesseract"
	defaultOCRLanguage          = "eng"
	defaultOCRDPI               = 300
	defaultOCRWorkers           = 4
	defaultOCRDetectorURL       = "http://localhost:8866"
	defaultOCRDefaultConfidence = 60.0
	defaultOCROutputDir         = "output"
	defaultOCRTrialConcurrency  = 1
	defaultOCRTrialTimeout      = "2m"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "all-minilm"
	defaultEmbeddingDimensions = 384

	defaultLLMProvider = "none"

	defaultAPIListen       = ":8000"
	defaultClientAPITarget = "http://localhost:8000"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "ocrfast.documents"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Store: StoreConfig{
			Backend: defaultStoreBackend,
		},
		OCR: OCRConfig{
			Engine:            defaultOCREngine,
			Language:          defaultOCRLanguage,
			DPI:               defaultOCRDPI,
			Workers:           defaultOCRWorkers,
			DetectorURL:       defaultOCRDetectorURL,
			DefaultConfidence: defaultOCRDefaultConfidence,
			OutputDir:         defaultOCROutputDir,
			TrialConcurrency:  defaultOCRTrialConcurrency,
			TrialTimeout:      defaultOCRTrialTimeout,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
