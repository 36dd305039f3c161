// Package docschema validates incoming translation requests against an
// embedded JSON Schema before anything touches the pipeline.
package docschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed translation_request.schema.json
var translationRequestSchemaJSON string

// Translation modes accepted in a request.
const (
	ModeDocument = "document"
	ModeFields   = "fields"
)

// TranslationRequest is a validated translation request body.
type TranslationRequest struct {
	TargetLanguage string          `json:"targetLanguage"`
	Document       json.RawMessage `json:"document"`
	Mode           string          `json:"mode,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateTranslationRequest strictly decodes and schema-checks a request
// body. Requests that fail here never reach the translation service.
func ValidateTranslationRequest(payload json.RawMessage) (*TranslationRequest, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode request JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize request JSON: %w", err)
	}

	var request TranslationRequest
	if err := json.Unmarshal(normalized, &request); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}

	if strings.TrimSpace(request.TargetLanguage) == "" {
		return nil, fmt.Errorf("targetLanguage must not be blank")
	}
	if request.Mode == "" {
		request.Mode = ModeDocument
	}

	return &request, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("translation_request.schema.json", strings.NewReader(translationRequestSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("translation_request.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("request body contains trailing content")
	}

	return value, nil
}
