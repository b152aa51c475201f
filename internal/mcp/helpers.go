package mcpserver

import (
	"encoding/json"
	"fmt"

	"comicdb/internal/etl"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// transformsFromArgs decodes the transformsJSON tool argument. Clients send
// it either as a JSON string or as an already-decoded array.
func transformsFromArgs(v any) ([]etl.TransformConfig, error) {
	var raw string
	switch arg := v.(type) {
	case nil:
		return nil, nil
	case string:
		raw = arg
	default:
		b, _ := json.Marshal(arg)
		raw = string(b)
	}
	if raw == "" {
		return nil, nil
	}

	var transforms []etl.TransformConfig
	if err := json.Unmarshal([]byte(raw), &transforms); err != nil {
		return nil, fmt.Errorf("parse transforms: %w", err)
	}
	return transforms, nil
}
