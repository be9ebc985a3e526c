package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/ppiankov/policygap/internal/model"
)

// StructuredGenerator produces a value of the caller's target type from a prompt.
// out must be a non-nil pointer; on success it holds the decoded response.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, prompt string, out any) error
}

// ErrNoJSON is returned when a completion contains no JSON document
var ErrNoJSON = errors.New("no JSON found in model output")

const structuredSystemPrompt = `You are a precise assistant that analyses policy documents and test scenarios.
Reply with exactly one JSON document that satisfies the requested schema and nothing else.`

// Structured adapts a Provider into a StructuredGenerator. The JSON schema of
// the target type is sent both in the prompt and, where supported, as the
// provider's native response format.
type Structured struct {
	provider    Provider
	maxTokens   int
	temperature float32
}

// NewStructured wraps a provider
func NewStructured(provider Provider, config Config) *Structured {
	return &Structured{
		provider:    provider,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
	}
}

// GenerateStructured implements StructuredGenerator
func (s *Structured) GenerateStructured(ctx context.Context, prompt string, out any) error {
	target, err := targetValue(out)
	if err != nil {
		return err
	}

	schema, err := jsonschema.GenerateSchemaForType(target.Interface())
	if err != nil {
		return fmt.Errorf("%w: derive schema for %s: %v", model.ErrInvalidInput, target.Type(), err)
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal schema: %v", model.ErrInvalidInput, err)
	}

	resp, err := s.provider.Complete(ctx, CompletionRequest{
		System:      structuredSystemPrompt,
		Prompt:      fmt.Sprintf("%s\n\nRespond with JSON matching this schema:\n%s", prompt, schemaJSON),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		SchemaName:  SchemaName(target.Type()),
		Schema:      schema,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrCollaborator, s.provider.Name(), err)
	}

	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrCollaborator, s.provider.Name(), err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decode %s: %v", model.ErrCollaborator, s.provider.Name(), target.Type(), err)
	}

	return nil
}

func targetValue(out any) (reflect.Value, error) {
	v := reflect.ValueOf(out)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: structured target must be a non-nil pointer, got %T", model.ErrInvalidInput, out)
	}
	return v.Elem(), nil
}

var schemaNameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SchemaName derives a provider-safe schema name from a Go type
func SchemaName(t reflect.Type) string {
	name := t.Name()
	if name == "" {
		name = t.Kind().String()
	}
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return schemaNameUnsafe.ReplaceAllString(b.String(), "_")
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\n?(.*?)```")

// ExtractJSON pulls the first JSON document out of model output: a fenced
// block if present, otherwise the outermost object or array in the text.
func ExtractJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoJSON
	}

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
	}

	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}

	// Decoder stops at the end of the first complete value
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return bytes.TrimSpace(raw), nil
}
