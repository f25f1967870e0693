// Package llm extracts entities by prompting a language model for JSON and
// validating the reply against a schema built from the expected fields.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rasaya1/OCRFastAPI/pkg/completion"
	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
)

// MaxPromptChars is how much of the document text is sent to the model.
const MaxPromptChars = 2000

const promptTemplate = `You are a document processing assistant that extracts structured data from text.
Given the following text extracted from a document of type '%s',
extract these fields: %s.
Return your response as a valid JSON object with no additional text.
If a field is not found, use null as the value.

Document Text:
%s`

// jsonObject finds the outermost {...} span in a chatty reply.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// Config holds Extractor settings.
type Config struct {
	Complete completion.Func
	Logger   *slog.Logger
}

// Extractor is the language model entity extractor.
type Extractor struct {
	complete completion.Func
	logger   *slog.Logger
}

// NewExtractor creates an LLM Extractor.
func NewExtractor(c Config) (*Extractor, error) {
	if c.Complete == nil {
		return nil, fmt.Errorf("llm extractor: no completion func")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{complete: c.Complete, logger: logger}, nil
}

func (e *Extractor) Name() string { return "llm" }

// Extract asks the model for the fields of t. Failures are reported in the
// returned map under "error" rather than as an error value.
func (e *Extractor) Extract(ctx context.Context, text string, t doctype.Type) (map[string]any, error) {
	fields := doctype.Fields(t)
	prompt := BuildPrompt(text, t, fields)

	reply, err := e.complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("entity completion failed", "document_type", t, "error", err)
		return failure("LLM API error: %v", err), nil
	}

	out, err := ParseReply(reply)
	if err != nil {
		e.logger.Warn("unparseable entity reply", "document_type", t, "error", err)
		return failure("Failed to parse LLM response"), nil
	}

	if err := validate(fields, out); err != nil {
		e.logger.Warn("entity reply failed validation", "document_type", t, "error", err)
		return failure("LLM response did not match schema: %v", err), nil
	}

	for _, f := range fields {
		if _, ok := out[f]; !ok {
			out[f] = nil
		}
	}
	return out, nil
}

// BuildPrompt renders the extraction prompt with the first MaxPromptChars
// characters of text.
func BuildPrompt(text string, t doctype.Type, fields []string) string {
	if r := []rune(text); len(r) > MaxPromptChars {
		text = string(r[:MaxPromptChars])
	}
	return fmt.Sprintf(promptTemplate, t, strings.Join(fields, ", "), text)
}

// ParseReply decodes reply as a JSON object, falling back to the first
// {...} span when the model wrapped it in prose or a code fence.
func ParseReply(reply string) (map[string]any, error) {
	reply = strings.TrimSpace(reply)

	var out map[string]any
	if err := json.Unmarshal([]byte(reply), &out); err == nil && out != nil {
		return out, nil
	}

	span := jsonObject.FindString(reply)
	if span == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return nil, fmt.Errorf("decoding JSON object: %w", err)
	}
	return out, nil
}

// schemaFor builds a schema accepting an object whose known fields hold
// plain JSON values. At least one of the known fields must be present, so a
// reply made only of unrelated keys is rejected.
func schemaFor(fields []string) map[string]any {
	props := make(map[string]any, len(fields))
	anyOf := make([]any, 0, len(fields))
	for _, f := range fields {
		props[f] = map[string]any{
			"type": []string{"string", "number", "integer", "boolean", "array", "object", "null"},
		}
		anyOf = append(anyOf, map[string]any{"required": []string{f}})
	}

	schema := map[string]any{
		"$schema":       "https://json-schema.org/draft/2020-12/schema",
		"type":          "object",
		"properties":    props,
		"minProperties": 1,
	}
	if len(anyOf) > 0 {
		schema["anyOf"] = anyOf
	}
	return schema
}

func validate(fields []string, v map[string]any) error {
	raw, err := json.Marshal(schemaFor(fields))
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("entities.json", bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("entities.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	// Validate expects the generic decoding of the document.
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

func failure(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}
