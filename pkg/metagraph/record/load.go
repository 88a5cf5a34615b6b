package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FromFile loads a record document from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json, .toml
func FromFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	case ".toml":
		return FromTOML(data)
	default:
		return nil, fmt.Errorf("unsupported record file extension: %s", ext)
	}
}

// FromYAML parses a YAML mapping into a Record.
// Nested mappings with non-string keys are normalized so they remain
// reachable through Record accessors.
func FromYAML(data []byte) (Record, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, _ := normalize(m).(map[string]any)
	return Record(out), nil
}

// FromJSON parses a JSON object into a Record.
// Integral numbers are delivered as float64, matching encoding/json.
func FromJSON(data []byte) (Record, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return Record(m), nil
}

// FromTOML parses a TOML document into a Record.
// Integers are delivered as int64 and arrays of tables as []any of records.
func FromTOML(data []byte) (Record, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	out, _ := normalize(m).(map[string]any)
	return Record(out), nil
}

// normalize rewrites map[any]any values produced by yaml into map[string]any
// and toml's []map[string]any into []any.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}
