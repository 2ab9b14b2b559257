package openai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"chatkit/internal/provider"
	"chatkit/pkg/logger"
)

// splitEvents is a bufio.SplitFunc yielding one SSE event per token. Events
// are separated by a blank line ("\n\n" or "\r\n\r\n"); a trailing event
// without the separator is returned at EOF.
func splitEvents(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\r\n\r\n")); i >= 0 {
		if j := bytes.Index(data[:i], []byte("\n\n")); j >= 0 {
			return j + 2, data[:j], nil
		}
		return i + 4, data[:i], nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ProcessStream turns an SSE body into ChatEvents. Only "data:" lines are
// interpreted; "data: [DONE]" ends the stream. Malformed chunks are logged
// and skipped. The returned channel is closed after a done or error event.
func ProcessStream(reader io.ReadCloser) <-chan provider.ChatEvent {
	events := make(chan provider.ChatEvent, eventChannelSize)

	go func() {
		defer close(events)
		defer reader.Close()

		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)
		scanner.Split(splitEvents)

		var usage *provider.Usage
		finish := ""

		for scanner.Scan() {
			for _, line := range strings.Split(scanner.Text(), "\n") {
				line = strings.TrimRight(line, "\r")
				if !strings.HasPrefix(line, "data:") {
					continue
				}
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data == "" {
					continue
				}
				if data == "[DONE]" {
					events <- provider.ChatEvent{Type: provider.EventTypeDone, FinishReason: finish, Usage: usage}
					return
				}

				var chunk streamChunk
				if err := json.Unmarshal([]byte(data), &chunk); err != nil {
					logger.Warn().Err(err).Str("data", data).Msg("Skipping malformed stream chunk")
					continue
				}
				if chunk.Error != nil {
					events <- provider.ChatEvent{
						Type: provider.EventTypeError,
						Error: &provider.ProviderError{
							Code:     provider.ErrCodeStreamBroken,
							Message:  fmt.Sprintf("%s: %s", chunk.Error.Type, chunk.Error.Message),
							Provider: ProviderName,
						},
					}
					return
				}
				if chunk.Usage != nil {
					usage = convertUsage(chunk.Usage)
				}
				if len(chunk.Choices) == 0 {
					continue
				}

				choice := chunk.Choices[0]
				emitDelta(events, choice.Delta)
				if choice.FinishReason != "" {
					finish = choice.FinishReason
				}
			}
		}

		if err := scanner.Err(); err != nil {
			logger.Error().Err(err).Msg("Stream read failed")
			events <- provider.ChatEvent{
				Type: provider.EventTypeError,
				Error: &provider.ProviderError{
					Code:      provider.ErrCodeStreamBroken,
					Message:   err.Error(),
					Provider:  ProviderName,
					Retryable: true,
				},
			}
			return
		}

		// Body ended without [DONE]; treat what we have as complete.
		events <- provider.ChatEvent{Type: provider.EventTypeDone, FinishReason: finish, Usage: usage}
	}()

	return events
}

func emitDelta(events chan<- provider.ChatEvent, delta streamDelta) {
	if delta.ReasoningContent != "" {
		events <- provider.ChatEvent{Type: provider.EventTypeThinking, Thinking: delta.ReasoningContent}
	}
	if delta.Debug != "" {
		events <- provider.ChatEvent{Type: provider.EventTypeThinking, Thinking: delta.Debug}
	}
	if delta.Content != "" {
		events <- provider.ChatEvent{Type: provider.EventTypeContent, Delta: delta.Content}
	}
	for _, tc := range delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		events <- provider.ChatEvent{
			Type: provider.EventTypeToolCall,
			ToolCall: &provider.ToolCall{
				Index:     idx,
				ID:        tc.ID,
				Type:      tc.Type,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
}

func convertUsage(u *chatUsage) *provider.Usage {
	if u == nil {
		return nil
	}
	return &provider.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
