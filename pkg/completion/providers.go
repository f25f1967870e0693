package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// postJSON sends body to url and returns the raw response body of a 200.
func postJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

// --- OpenAI ---

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat *openAIRespFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRespFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newOpenAICaller(client *http.Client, apiKey, model, baseURL string) Func {
	return func(ctx context.Context, prompt string) (string, error) {
		raw, err := postJSON(ctx, client, baseURL+"/v1/chat/completions", openAIRequest{
			Model:          model,
			Messages:       []chatMessage{{Role: "user", Content: prompt}},
			ResponseFormat: &openAIRespFormat{Type: "json_object"},
		}, map[string]string{"Authorization": "Bearer " + apiKey})
		if err != nil {
			return "", fmt.Errorf("openai: %w", err)
		}

		var result openAIResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", fmt.Errorf("openai: unmarshal response: %w", err)
		}
		if result.Error != nil {
			return "", fmt.Errorf("openai error: %s", result.Error.Message)
		}
		if len(result.Choices) == 0 {
			return "", errors.New("openai returned no choices")
		}
		return result.Choices[0].Message.Content, nil
	}
}

// --- Anthropic ---

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newAnthropicCaller(client *http.Client, apiKey, model, baseURL string) Func {
	return func(ctx context.Context, prompt string) (string, error) {
		raw, err := postJSON(ctx, client, baseURL+"/v1/messages", anthropicRequest{
			Model:     model,
			MaxTokens: 1024,
			Messages: []chatMessage{
				{Role: "user", Content: prompt + "\n\nReturn ONLY valid JSON, no markdown or extra text."},
			},
		}, map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": "2023-06-01",
		})
		if err != nil {
			return "", fmt.Errorf("anthropic: %w", err)
		}

		var result anthropicResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", fmt.Errorf("anthropic: unmarshal response: %w", err)
		}
		if result.Error != nil {
			return "", fmt.Errorf("anthropic error: %s", result.Error.Message)
		}
		for _, block := range result.Content {
			if block.Type == "text" || block.Type == "" {
				return block.Text, nil
			}
		}
		return "", errors.New("anthropic returned no content")
	}
}

// --- Ollama ---

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

func newOllamaCaller(client *http.Client, model, baseURL string) Func {
	return func(ctx context.Context, prompt string) (string, error) {
		raw, err := postJSON(ctx, client, baseURL+"/api/chat", ollamaChatRequest{
			Model:    model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
			Format:   "json",
		}, nil)
		if err != nil {
			return "", fmt.Errorf("ollama: %w", err)
		}

		var result ollamaChatResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", fmt.Errorf("ollama: unmarshal response: %w", err)
		}
		if result.Error != "" {
			return "", fmt.Errorf("ollama error: %s", result.Error)
		}
		return result.Message.Content, nil
	}
}
