package extract

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNotObject is returned by DecodeObject for valid JSON that is not an object.
var ErrNotObject = errors.New("json document is not an object")

// Unmarshal decodes model-produced JSON into v. A surrounding markdown code
// fence is stripped; text that does not decode is run through jsonrepair
// once before giving up. The error of the first attempt is returned when
// the repair does not help.
func Unmarshal(raw string, v any) error {
	raw = StripCodeFence(raw)
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	fixed, rerr := jsonrepair.JSONRepair(raw)
	if rerr != nil {
		return err
	}
	if json.Unmarshal([]byte(fixed), v) != nil {
		return err
	}
	return nil
}

// DecodeObject is Unmarshal into a generic object.
func DecodeObject(raw string) (map[string]any, error) {
	var v any
	if err := Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// StripCodeFence removes a ```json ... ``` wrapper if present.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
