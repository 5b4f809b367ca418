// Package jsonutil converts relaxed JSON dialects (JSON5, JSONC) into
// canonical JSON.
package jsonutil

import (
	"encoding/json"
	"fmt"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// RelaxedExtensions is the set of source extensions parsed as relaxed
// JSON. Staged output for these is always renamed to ".json".
var RelaxedExtensions = map[string]bool{
	".json5": true,
	".jsonc": true,
}

// Canonicalize parses relaxed JSON (comments, trailing commas, unquoted
// keys) and re-serializes it as canonical JSON with sorted object keys.
func Canonicalize(data []byte) ([]byte, error) {
	var v any
	if err := json5.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse relaxed JSON: %w", err)
	}

	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize canonical JSON: %w", err)
	}
	return out, nil
}
