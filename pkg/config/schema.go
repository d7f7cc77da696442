package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "kongreg-config.json"

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	schemaErr  error
)

// Schema returns the JSON Schema config files are validated against.
func Schema() string {
	return schemaJSON
}

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiled, schemaErr = compiler.Compile(schemaURL)
	})
	return compiled, schemaErr
}

// SchemaError is a single schema violation.
type SchemaError struct {
	Path    string // Config path, e.g., "plugins[0].name"
	Message string
}

func (e SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// SchemaValidationError contains every schema violation of one document.
type SchemaValidationError struct {
	File   string
	Errors []SchemaError
}

func (e *SchemaValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, se := range e.Errors {
		msgs[i] = "  " + se.Error()
	}
	prefix := "invalid configuration"
	if e.File != "" {
		prefix += " in " + e.File
	}
	return prefix + ":\n" + strings.Join(msgs, "\n")
}

// ValidateDocument checks a YAML (or JSON) document against the config
// schema. It returns nil when the document is valid, a
// *SchemaValidationError listing the violations, or another error when the
// document cannot be parsed.
func ValidateDocument(data []byte) error {
	schema, err := configSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}

	// Round-trip through JSON so the validator sees json.Number values and
	// string-keyed maps.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config document is not JSON compatible: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("failed to decode config document: %w", err)
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	result := &SchemaValidationError{}
	collectSchemaErrors(ve, result)
	sort.SliceStable(result.Errors, func(i, j int) bool {
		return result.Errors[i].Path < result.Errors[j].Path
	})
	return result
}

// collectSchemaErrors flattens the error tree into its leaves.
func collectSchemaErrors(err *jsonschema.ValidationError, result *SchemaValidationError) {
	if len(err.Causes) == 0 {
		result.Errors = append(result.Errors, SchemaError{
			Path:    pointerToPath(err.InstanceLocation),
			Message: err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, result)
	}
}

// pointerToPath converts a JSON Pointer ("/plugins/0/name") to the dotted
// form used in messages ("plugins[0].name").
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range strings.Split(ptr, "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}
