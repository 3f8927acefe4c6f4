package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

//go:embed samplegen.v1.schema.json
var embeddedSchema string

const embeddedSchemaURL = "samplegen.v1.schema.json"

// ErrUnsupportedFormat is returned for config files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// format identifies the encoding of a config file.
type format string

const (
	formatYAML format = "yaml"
	formatTOML format = "toml"
	formatJSON format = "json"
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	case ".json":
		return formatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadAndValidate loads and validates the configuration.
// An empty schemaPath validates against the built-in schema.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	return parse(data, f, schemaPath)
}

// parse decodes, validates and completes a configuration document.
func parse(data []byte, f format, schemaPath string) (*Config, error) {
	raw, err := decodeRaw(data, f)
	if err != nil {
		return nil, err
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: config validation failed: %w", err)
	}

	var cfg Config
	if err := decodeInto(data, f, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// decodeRaw produces a JSON-shaped document for schema validation.
// YAML and TOML decode into types the validator does not accept, so
// every format goes through a JSON round trip.
func decodeRaw(data []byte, f format) (any, error) {
	var raw any
	switch f {
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	case formatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
	case formatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return raw, nil
	}

	if raw == nil {
		raw = map[string]any{}
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: failed to normalize document: %w", err)
	}

	var normalized any
	if err := json.Unmarshal(buf, &normalized); err != nil {
		return nil, fmt.Errorf("config: failed to normalize document: %w", err)
	}
	return normalized, nil
}

func decodeInto(data []byte, f format, cfg *Config) error {
	switch f {
	case formatYAML:
		return yaml.Unmarshal(data, cfg)
	case formatTOML:
		return toml.Unmarshal(data, cfg)
	case formatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		return dec.Decode(cfg)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath != "" {
		return jsonschema.Compile(schemaPath)
	}
	return jsonschema.CompileString(embeddedSchemaURL, embeddedSchema)
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	model, ok := c.Models[c.Generation.DefaultModel]
	if !ok {
		return fmt.Errorf("config: default model %q is not in the models catalog", c.Generation.DefaultModel)
	}
	if model.Backend == "" {
		return fmt.Errorf("config: model %q has no backend", c.Generation.DefaultModel)
	}
	for id, m := range c.Models {
		if _, err := m.GetSource(); err != nil {
			return fmt.Errorf("config: model %q: %w", id, err)
		}
	}
	return nil
}

// Marshal encodes the configuration in the format implied by path.
func Marshal(cfg *Config, path string) ([]byte, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	switch f {
	case formatYAML:
		return yaml.Marshal(cfg)
	case formatTOML:
		return toml.Marshal(cfg)
	default:
		return json.MarshalIndent(cfg, "", "  ")
	}
}
