package runner

import (
	"fmt"
	"maps"
	"slices"

	"chatkit/internal/provider"
)

// Aggregator reassembles streamed tool-call fragments into whole calls.
// Fragments are keyed by slot index; id, type and name overwrite when
// present, arguments are concatenated in arrival order.
type Aggregator struct {
	slots     map[int]*provider.ToolCall
	triggered bool
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{slots: make(map[int]*provider.ToolCall)}
}

// Add merges one fragment.
func (a *Aggregator) Add(delta provider.ToolCall) {
	a.triggered = true

	slot, ok := a.slots[delta.Index]
	if !ok {
		slot = &provider.ToolCall{Index: delta.Index}
		a.slots[delta.Index] = slot
	}
	if delta.ID != "" {
		slot.ID = delta.ID
	}
	if delta.Type != "" {
		slot.Type = delta.Type
	}
	if delta.Name != "" {
		slot.Name = delta.Name
	}
	slot.Arguments += delta.Arguments
}

// Triggered reports whether any tool-call fragment has been seen.
func (a *Aggregator) Triggered() bool {
	return a.triggered
}

// Calls returns the assembled calls ordered by slot index.
func (a *Aggregator) Calls() []provider.ToolCall {
	indexes := slices.Sorted(maps.Keys(a.slots))
	out := make([]provider.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		tc := *a.slots[idx]
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("tool_call_%d", idx)
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		out = append(out, tc)
	}
	return out
}
