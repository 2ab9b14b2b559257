package runner

import (
	"slices"

	"chatkit/internal/provider"
)

// HistoryWindow is how many messages after the first are sent per request.
const HistoryWindow = 6

// TrimHistory keeps the first message (the system prompt) and the most
// recent HistoryWindow messages after it, in order. The input is not
// modified.
func TrimHistory(messages []provider.Message) []provider.Message {
	if len(messages) == 0 {
		return nil
	}
	rest := messages[1:]
	if len(rest) > HistoryWindow {
		rest = rest[len(rest)-HistoryWindow:]
	}
	out := make([]provider.Message, 0, len(rest)+1)
	out = append(out, messages[0])
	return append(out, rest...)
}

// prepareHistory trims the history and repairs any tool call pairing the
// trim broke.
func prepareHistory(messages []provider.Message) []provider.Message {
	return provider.SanitizeMessages(TrimHistory(messages))
}

// withSystemPrompt prepends a system message when history has none at the
// head.
func withSystemPrompt(history []provider.Message, prompt string) []provider.Message {
	if prompt == "" || (len(history) > 0 && history[0].Role == provider.RoleSystem) {
		return history
	}
	return slices.Insert(slices.Clone(history), 0, provider.SystemMessage(prompt))
}
