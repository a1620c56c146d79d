package proof

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed proof-v1.schema.json
var schemaV1 []byte

var (
	schemaOnce sync.Once
	schemaErr  error
	compiled   *jsonschema.Schema
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		const url = "typedcode://schema/proof-v1.schema.json"
		if err := compiler.AddResource(url, bytes.NewReader(schemaV1)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, schemaErr = compiler.Compile(url)
	})
	return compiled, schemaErr
}

// ValidateSchema checks a raw proof document against the v1 JSON
// schema. This is the pipeline's metadata-phase structural check; it
// is stricter than Parse, which only guards what replay and
// verification rely on.
func ValidateSchema(raw []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return &CaptureFormatError{Reason: "invalid JSON", Err: err}
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
