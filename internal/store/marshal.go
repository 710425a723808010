package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/incoq/internal/incast"
)

// marshalStrings converts a list of names or output lines to canonical
// JSON TEXT for storage. A nil list is stored as [].
func marshalStrings(ss []string) (string, error) {
	arr := make([]any, len(ss))
	for i, s := range ss {
		arr[i] = s
	}
	data, err := incast.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings parses TEXT written by marshalStrings.
// Returns an empty slice (not nil) for [].
func unmarshalStrings(data string) ([]string, error) {
	out := []string{}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
