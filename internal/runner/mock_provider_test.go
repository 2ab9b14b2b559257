package runner

import (
	"context"
	"fmt"
	"sync"

	"chatkit/internal/provider"
)

// mockProvider replays one scripted turn per request and records every
// request it receives.
type mockProvider struct {
	mu        sync.Mutex
	streams   [][]provider.ChatEvent
	responses []*provider.ChatResponse
	requests  []provider.ChatRequest
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Stream(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	n := len(m.requests) - 1
	if n >= len(m.streams) {
		return nil, fmt.Errorf("unexpected stream request #%d", n+1)
	}
	turn := m.streams[n]
	ch := make(chan provider.ChatEvent, len(turn))
	for _, ev := range turn {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Chat(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	n := len(m.requests) - 1
	if n >= len(m.responses) {
		return nil, fmt.Errorf("unexpected chat request #%d", n+1)
	}
	return m.responses[n], nil
}

func (m *mockProvider) request(i int) provider.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func (m *mockProvider) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// contentTurn streams text in the given chunks and finishes.
func contentTurn(chunks ...string) []provider.ChatEvent {
	evs := make([]provider.ChatEvent, 0, len(chunks)+1)
	for _, c := range chunks {
		evs = append(evs, provider.ChatEvent{Type: provider.EventTypeContent, Delta: c})
	}
	return append(evs, provider.ChatEvent{Type: provider.EventTypeDone, FinishReason: "stop"})
}

// callTurn streams whole tool calls, one fragment each.
func callTurn(calls ...provider.ToolCall) []provider.ChatEvent {
	evs := make([]provider.ChatEvent, 0, len(calls)+1)
	for i := range calls {
		tc := calls[i]
		tc.Index = i
		evs = append(evs, provider.ChatEvent{Type: provider.EventTypeToolCall, ToolCall: &tc})
	}
	return append(evs, provider.ChatEvent{Type: provider.EventTypeDone, FinishReason: "tool_calls"})
}

func call(id, name, args string) provider.ToolCall {
	return provider.ToolCall{ID: id, Type: "function", Name: name, Arguments: args}
}

// recorder collects hook notifications.
type recorder struct {
	mu       sync.Mutex
	partial  string
	tools    []ToolEvent
	planning []PlanningUpdate
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnPartial: func(text string) {
			r.mu.Lock()
			r.partial += text
			r.mu.Unlock()
		},
		OnToolEvent: func(ev ToolEvent) {
			r.mu.Lock()
			r.tools = append(r.tools, ev)
			r.mu.Unlock()
		},
		OnPlanning: func(u PlanningUpdate) {
			r.mu.Lock()
			r.planning = append(r.planning, u)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) details() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.planning))
	for _, u := range r.planning {
		if u.Detail != "" {
			out = append(out, u.Detail)
		}
	}
	return out
}
