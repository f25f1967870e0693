package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent ocrfast configuration stored as config.toml
// in the .ocrfast/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Store     StoreConfig     `toml:"store"`
	OCR       OCRConfig       `toml:"ocr"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	API       APIConfig       `toml:"api"`
	Client    ClientConfig    `toml:"client"`
	Classify  ClassifyConfig  `toml:"classify"`
	Events    EventsConfig    `toml:"events"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	// Dir is the directory holding the index and metadata artifacts.
	// Empty resolves to .ocrfast/store.
	Dir string `toml:"dir,omitempty"`

	// Backend selects the similarity index: "flat" or "sqlite-vec".
	Backend string `toml:"backend,omitempty"`
}

// OCRConfig holds recognition and batch extraction settings.
type OCRConfig struct {
	Engine            string  `toml:"engine,omitempty"`
	Language          string  `toml:"language,omitempty"`
	DPI               uint    `toml:"dpi,omitempty"`
	Workers           uint    `toml:"workers,omitempty"`
	DetectorURL       string  `toml:"detector_url,omitempty"`
	DefaultConfidence float64 `toml:"default_confidence,omitempty"`
	OutputDir         string  `toml:"output_dir,omitempty"`

	// TrialConcurrency bounds the recognition trials run at once per page.
	TrialConcurrency uint `toml:"trial_concurrency,omitempty"`

	// TrialTimeout bounds a single recognition trial, as a Go duration.
	// "0s" disables the bound.
	TrialTimeout string `toml:"trial_timeout,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// LLMConfig holds the completion provider used for entity extraction.
// Provider "none" selects the pattern based extractor.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. ocrfast search --remote). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// ClassifyConfig holds similarity classification settings.
type ClassifyConfig struct {
	// MinScore is the lowest top-1 similarity accepted before falling back
	// to keyword rules. Unset accepts any hit, including negative scores.
	MinScore *float64 `toml:"min_score,omitempty"`
}

// EventsConfig holds document event publishing settings.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
	DSN      string `toml:"dsn,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func optionalFloatKey(name string, field func(c *Config) **float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == nil {
				return ""
			}
			return strconv.FormatFloat(**field(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			if v == "" {
				*field(c) = nil
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = &f
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"store.dir":              stringKey(func(c *Config) *string { return &c.Store.Dir }),
	"store.backend":          stringKey(func(c *Config) *string { return &c.Store.Backend }),
	"ocr.engine":             stringKey(func(c *Config) *string { return &c.OCR.Engine }),
	"ocr.language":           stringKey(func(c *Config) *string { return &c.OCR.Language }),
	"ocr.dpi":                uintKey("ocr.dpi", func(c *Config) *uint { return &c.OCR.DPI }),
	"ocr.workers":            uintKey("ocr.workers", func(c *Config) *uint { return &c.OCR.Workers }),
	"ocr.detector_url":       stringKey(func(c *Config) *string { return &c.OCR.DetectorURL }),
	"ocr.default_confidence": floatKey("ocr.default_confidence", func(c *Config) *float64 { return &c.OCR.DefaultConfidence }),
	"ocr.output_dir":         stringKey(func(c *Config) *string { return &c.OCR.OutputDir }),
	"ocr.trial_concurrency":  uintKey("ocr.trial_concurrency", func(c *Config) *uint { return &c.OCR.TrialConcurrency }),
	"ocr.trial_timeout":      durationKey("ocr.trial_timeout", func(c *Config) *string { return &c.OCR.TrialTimeout }),
	"embedding.provider":     stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":       stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":        stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":   uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"llm.provider":           stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.model":              stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.base_url":           stringKey(func(c *Config) *string { return &c.LLM.BaseURL }),
	"api.listen":             stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target":      stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"classify.min_score":     optionalFloatKey("classify.min_score", func(c *Config) **float64 { return &c.Classify.MinScore }),
	"events.provider":        stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":         stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":           stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"events.dsn":             stringKey(func(c *Config) *string { return &c.Events.DSN }),
}

// orderedKeys is the stable listing order, matching the TOML section layout.
var orderedKeys = []string{
	"store.dir",
	"store.backend",
	"ocr.engine",
	"ocr.language",
	"ocr.dpi",
	"ocr.workers",
	"ocr.detector_url",
	"ocr.default_confidence",
	"ocr.output_dir",
	"ocr.trial_concurrency",
	"ocr.trial_timeout",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"llm.provider",
	"llm.model",
	"llm.base_url",
	"api.listen",
	"client.api_target",
	"classify.min_score",
	"events.provider",
	"events.brokers",
	"events.topic",
	"events.dsn",
}
