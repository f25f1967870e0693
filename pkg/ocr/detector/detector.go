// Package detector is an ocr.Recognizer backed by a text detection service
// reached over HTTP.
//
// The service receives a base64 PNG and answers with the detected text
// fragments, each carrying a 0-1 confidence:
//
//	POST /ocr {"image": "<base64 png>", "language": "eng"}
//	200       {"detections": [{"text": "TOTAL", "confidence": 0.97}]}
package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
)

const (
	// EngineName is recorded in extraction outputs.
	EngineName = "detector"

	// DefaultBaseURL is the default detection service URL.
	DefaultBaseURL = "http://localhost:8866"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("detection service unavailable")

// Config holds Recognizer settings.
type Config struct {
	// BaseURL of the detection service. Defaults to DefaultBaseURL.
	BaseURL string

	// Language hint forwarded to the service. Defaults to eng.
	Language string

	// Timeout bounds a single request. Defaults to one minute.
	Timeout time.Duration

	Logger *slog.Logger
}

// Recognizer calls the detection service once per image.
type Recognizer struct {
	baseURL    string
	language   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

type detectRequest struct {
	Image    string `json:"image"`
	Language string `json:"language,omitempty"`
}

type detection struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type detectResponse struct {
	Detections []detection `json:"detections"`
}

// NewRecognizer creates a detection service recognizer.
func NewRecognizer(c Config) *Recognizer {
	r := &Recognizer{
		baseURL:  strings.TrimRight(c.BaseURL, "/"),
		language: c.Language,
		logger:   c.Logger,
	}
	if r.baseURL == "" {
		r.baseURL = DefaultBaseURL
	}
	if r.language == "" {
		r.language = "eng"
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	r.httpClient = &http.Client{Timeout: timeout}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "DetectorOCR",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return r
}

func (r *Recognizer) Name() string { return EngineName }

// Configs is a single pass; the service has no tunable modes.
func (r *Recognizer) Configs() []ocr.RecognizeConfig {
	return []ocr.RecognizeConfig{{Name: "detect"}}
}

// Recognize sends img to the service. Fragments are joined with single
// spaces and the mean fragment confidence is scaled to 0-100.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, _ ocr.RecognizeConfig) (ocr.Recognition, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.Recognition{}, fmt.Errorf("encode image: %w", err)
	}

	body, err := json.Marshal(detectRequest{
		Image:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		Language: r.language,
	})
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("marshaling request: %w", err)
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.detect(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ocr.Recognition{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ocr.Recognition{}, err
	}

	return toRecognition(result.([]detection)), nil
}

func (r *Recognizer) detect(ctx context.Context, body []byte) ([]detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, string(msg))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return out.Detections, nil
}

func toRecognition(ds []detection) ocr.Recognition {
	var (
		parts []string
		sum   float64
	)
	for _, d := range ds {
		parts = append(parts, d.Text)
		sum += d.Confidence
	}

	if len(ds) == 0 {
		return ocr.Recognition{Confidence: ocr.Float64(0)}
	}
	return ocr.Recognition{
		Text:       strings.TrimSpace(strings.Join(parts, " ")),
		Confidence: ocr.Float64(sum / float64(len(ds)) * 100),
	}
}

// Close releases idle connections.
func (r *Recognizer) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}
