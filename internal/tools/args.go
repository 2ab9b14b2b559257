package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chatkit/internal/extract"
)

// ParseArguments decodes a tool-call argument payload into an object.
// An empty payload is an empty object. Payloads that fail to decode are
// run through jsonrepair once (models often drop a closing brace or quote).
func ParseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	obj, err := extract.DecodeObject(raw)
	if errors.Is(err, extract.ErrNotObject) {
		return nil, fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidArgs)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return obj, nil
}

// FormatResult serializes a tool result for the tool message.
func FormatResult(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
