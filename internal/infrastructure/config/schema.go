package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"

	"github.com/doeshing/sentry-go/assets"
)

const schemaURL = "https://sentry.schemas.local/config.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func layerSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft7
		if err := c.AddResource(schemaURL, bytes.NewReader(assets.ConfigSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("config schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("config schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// decodeLayer strips comments and trailing commas, validates the document
// against the layer schema and decodes it.
func decodeLayer(data []byte) (layer, error) {
	data = jsonc.ToJSON(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return layer{}, nil
	}

	var doc interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return layer{}, fmt.Errorf("parse: %w", err)
	}
	schema, err := layerSchema()
	if err != nil {
		return layer{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return layer{}, fmt.Errorf("schema: %w", err)
	}

	var out layer
	if err := json.Unmarshal(data, &out); err != nil {
		return layer{}, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}
