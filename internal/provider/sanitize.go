package provider

import "encoding/json"

// SanitizeMessages repairs tool call pairing in a (possibly trimmed) history
// before it is sent. OpenAI-compatible endpoints reject a request where a
// tool result does not directly follow the assistant message that issued
// the call, or where call arguments are not valid JSON.
//
//   - tool calls with invalid JSON arguments are dropped with their results;
//   - tool results not in the block right after their owner are dropped;
//   - assistant tool calls left without any result are stripped, and the
//     assistant message is dropped when nothing else remains in it.
func SanitizeMessages(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}

	out := make([]Message, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		if msg.Role == RoleTool {
			// Any tool message reaching here has no owner directly before it.
			continue
		}
		if msg.Role != RoleAssistant || len(msg.ToolCalls) == 0 {
			out = append(out, msg)
			continue
		}

		valid := make(map[string]bool, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			if tc.Arguments == "" || json.Valid([]byte(tc.Arguments)) {
				valid[tc.ID] = true
			}
		}

		// Collect the contiguous tool block that follows.
		var results []Message
		answered := make(map[string]bool)
		j := i + 1
		for ; j < len(messages) && messages[j].Role == RoleTool; j++ {
			id := messages[j].ToolCallID
			if valid[id] && !answered[id] {
				answered[id] = true
				results = append(results, messages[j])
			}
		}
		i = j - 1

		var calls []ToolCall
		for _, tc := range msg.ToolCalls {
			if answered[tc.ID] {
				calls = append(calls, tc)
			}
		}
		msg.ToolCalls = calls
		if len(calls) == 0 && msg.Content == "" {
			continue
		}
		out = append(out, msg)
		out = append(out, results...)
	}
	return out
}
