package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when a document root is not a mapping.
var ErrNotMapping = errors.New("hydrate: document root is not a mapping")

// ParseYAML decodes a YAML document into a state tree. Nested mappings
// become groups.
func ParseYAML(data []byte) (map[string]any, error) {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("hydrate: parse yaml: %w", err)
	}
	return asTree(root)
}

// ParseJSON decodes a JSON object into a state tree. Numbers decode as
// float64.
func ParseJSON(data []byte) (map[string]any, error) {
	var root any
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("hydrate: parse json: %w", err)
	}
	return asTree(root)
}

func asTree(root any) (map[string]any, error) {
	switch typed := root.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return typed, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, root)
	}
}
