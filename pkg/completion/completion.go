// Package completion provides prompt-in, text-out callers for the supported
// LLM providers. Every caller is wrapped in a rate limiter and a circuit
// breaker.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rasaya1/OCRFastAPI/pkg/credentials"
)

const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

var (
	// ErrDisabled is returned by New when no provider is configured.
	ErrDisabled = errors.New("llm completion disabled")

	// ErrNoCredentials is returned by New when a hosted provider has no key.
	ErrNoCredentials = errors.New("no API key for llm provider")
)

// Func sends prompt to a model and returns its reply.
type Func func(ctx context.Context, prompt string) (string, error)

// Config selects and configures a provider.
type Config struct {
	// Provider is one of "openai", "anthropic", "ollama" or "none".
	Provider string

	// Model overrides the provider default.
	Model string

	// BaseURL overrides the provider API URL.
	BaseURL string

	// APIKey takes precedence over Credentials.
	APIKey string

	// Credentials resolves stored or environment keys. May be nil.
	Credentials *credentials.Manager

	// Timeout bounds a single request. Defaults to 30 seconds.
	Timeout time.Duration

	// RequestsPerMinute caps the call rate. Defaults to 60.
	RequestsPerMinute int

	Logger *slog.Logger
}

func (c Config) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderNone
	}
	return p
}

func (c Config) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.Credentials.Resolve(c.provider())
}

// HasCredentials reports whether New would succeed for c.
func HasCredentials(c Config) bool {
	switch c.provider() {
	case ProviderOllama:
		return true
	case ProviderOpenAI, ProviderAnthropic:
		return c.apiKey() != ""
	default:
		return false
	}
}

// New builds a guarded caller for the configured provider.
func New(c Config) (Func, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	var (
		fn      Func
		model   = c.Model
		baseURL = strings.TrimRight(c.BaseURL, "/")
	)

	switch p := c.provider(); p {
	case ProviderNone:
		return nil, ErrDisabled

	case ProviderOpenAI:
		key := c.apiKey()
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoCredentials, p)
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		fn = newOpenAICaller(client, key, model, baseURL)

	case ProviderAnthropic:
		key := c.apiKey()
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoCredentials, p)
		}
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
		if baseURL == "" {
			baseURL = "https://api.anthropic.com"
		}
		fn = newAnthropicCaller(client, key, model, baseURL)

	case ProviderOllama:
		if model == "" {
			model = "llama3.2"
		}
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		fn = newOllamaCaller(client, model, baseURL)

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", p)
	}

	return Guard(fn, GuardConfig{
		Name:              c.provider(),
		RequestsPerMinute: c.RequestsPerMinute,
		Logger:            c.Logger,
	}), nil
}
