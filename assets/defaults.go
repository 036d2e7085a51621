package assets

import (
	_ "embed"
)

// DefaultConfigJSON is the package default config layer. It may contain
// comments.
//
//go:embed defaults/config.json
var DefaultConfigJSON []byte

// ConfigSchemaJSON validates every config layer.
//
//go:embed defaults/config.schema.json
var ConfigSchemaJSON []byte

// ExampleRulesYAML is written by `sentry config init` as a starting rules file.
//
//go:embed defaults/rules.yaml
var ExampleRulesYAML []byte
