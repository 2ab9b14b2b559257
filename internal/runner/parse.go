package runner

import (
	"strings"

	"chatkit/internal/extract"
	"chatkit/internal/tools"
	"chatkit/pkg/logger"
)

const (
	reasonKey = "reason"
	debugKey  = "debug"
)

// resolveContent turns the accumulated raw text of a finished exchange into
// the answer and its debug summary.
//
// The live value assembled by the extractor wins over a freshly parsed
// field when it has one. Text that is not a JSON object degrades to itself;
// a parse failure is never an error. When no answer text is left the debug
// summary stands in for it.
func resolveContent(raw, live, streamedDebug, key string) (content, debug string) {
	switch {
	case strings.TrimSpace(raw) == "":
		content = live
		debug = streamedDebug

	default:
		doc, err := extract.DecodeObject(raw)
		if err != nil {
			logger.Warn().Err(err).Int("len", len(raw)).Msg("Answer is not a JSON object, using raw text")
			content = raw
			if live != "" {
				content = live
			}
			debug = streamedDebug
			break
		}
		content = pickResult(doc, key)
		if live != "" {
			content = live
		}
		if d, ok := doc[debugKey].(string); ok {
			debug = d
		} else {
			debug = strings.TrimSpace(streamedDebug)
		}
	}

	if content == "" {
		content = debug
	}
	return content, debug
}

// pickResult reads the answer field: a string as is, any other non-null
// value serialized, else the secondary "reason" field.
func pickResult(doc map[string]any, key string) string {
	if v, ok := doc[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return tools.FormatResult(v)
	}
	if s, ok := doc[reasonKey].(string); ok {
		return s
	}
	return ""
}
