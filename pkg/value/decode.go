package value

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeYAML decodes a YAML mapping document into an Object.
// An empty document yields an empty Object.
func DecodeYAML(data []byte) (Object, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return objectFrom(raw)
}

// DecodeJSON decodes a JSON object into an Object. Integral numbers stay
// integers.
func DecodeJSON(data []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return objectFrom(raw)
}

func objectFrom(raw map[string]any) (Object, error) {
	if raw == nil {
		return Object{}, nil
	}
	v, err := FromGo(raw)
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}
