package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeJSONRecords reads a JSON array of objects, or an object wrapping one under
// "data" or "results".
func DecodeJSONRecords(r io.Reader) ([]map[string]any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	if body[0] == '[' {
		var list []map[string]any
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode json records: %w", err)
		}
		return list, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode json records: %w", err)
	}
	for _, key := range []string{"data", "results"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var list []map[string]any
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode json %q: %w", key, err)
		}
		return list, nil
	}
	return nil, fmt.Errorf("decode json records: expected an array or an object with data/results")
}
