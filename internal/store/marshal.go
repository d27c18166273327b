package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// marshalArtifact converts a compiled survey to canonical JSON TEXT.
func marshalArtifact(cs *ir.CompiledSurvey) (string, error) {
	data, err := ir.MarshalCanonical(cs)
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}
	return string(data), nil
}

// unmarshalArtifact parses an artifact stored by marshalArtifact.
func unmarshalArtifact(data string) (*ir.CompiledSurvey, error) {
	var cs ir.CompiledSurvey
	if err := json.Unmarshal([]byte(data), &cs); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &cs, nil
}

// marshalValues converts response values to canonical JSON TEXT.
func marshalValues(values map[string]any) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses values TEXT. Numbers decode as json.Number so
// integers above 2^53 keep their precision.
func unmarshalValues(data string) (map[string]any, error) {
	values := make(map[string]any)
	if data == "" || data == "{}" {
		return values, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return values, nil
}

// marshalIndex converts a navigation index to JSON TEXT; nil is NULL.
func marshalIndex(idx ir.NavigationIndex) (any, error) {
	if idx == nil {
		return nil, nil
	}
	data, err := json.Marshal(ir.NavigationIndexJSON{NavigationIndex: idx})
	if err != nil {
		return nil, fmt.Errorf("marshal index: %w", err)
	}
	return string(data), nil
}

// unmarshalIndex parses index TEXT; NULL is nil.
func unmarshalIndex(data *string) (ir.NavigationIndex, error) {
	if data == nil {
		return nil, nil
	}
	var w ir.NavigationIndexJSON
	if err := json.Unmarshal([]byte(*data), &w); err != nil {
		return nil, fmt.Errorf("unmarshal index: %w", err)
	}
	return w.NavigationIndex, nil
}
