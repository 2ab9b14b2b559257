package runner

import (
	"context"

	"chatkit/internal/provider"
)

// EventType represents the type of event emitted during a request.
type EventType int

const (
	// EventTypePartial carries live answer text.
	EventTypePartial EventType = iota
	// EventTypeTool carries a tool lifecycle notification.
	EventTypeTool
	// EventTypePlanning carries a planning stage transition.
	EventTypePlanning
	// EventTypeDone carries the final reply.
	EventTypeDone
	// EventTypeError indicates the request failed.
	EventTypeError
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventTypePartial:
		return "partial"
	case EventTypeTool:
		return "tool"
	case EventTypePlanning:
		return "planning"
	case EventTypeDone:
		return "done"
	case EventTypeError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one notification produced while answering a request.
type Event struct {
	// Type indicates the kind of event.
	Type EventType `json:"-"`

	// Content contains partial text, or the final answer on done events.
	Content string `json:"content,omitempty"`

	// Debug contains the reasoning summary on done events.
	Debug string `json:"debug,omitempty"`

	// Tool contains the tool notification for tool events.
	Tool *ToolEvent `json:"tool,omitempty"`

	// Planning contains the stage update for planning events.
	Planning *PlanningUpdate `json:"planning,omitempty"`

	// Usage contains token usage information, typically on done events.
	Usage *provider.Usage `json:"usage,omitempty"`

	// Error contains the error for error events.
	Error error `json:"-"`

	// ErrorMsg contains the human-readable error for serialization.
	ErrorMsg string `json:"error,omitempty"`
}

// NewDoneEvent creates a done event from a reply.
func NewDoneEvent(r *Reply) Event {
	ev := Event{Type: EventTypeDone}
	if r != nil {
		ev.Content = r.Content
		ev.Debug = r.Debug
		ev.Usage = r.Usage
	}
	return ev
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err error) Event {
	msg := ""
	if err != nil {
		msg = ErrorMessage(err)
	}
	return Event{
		Type:     EventTypeError,
		Error:    err,
		ErrorMsg: msg,
	}
}

// ChannelHooks returns Hooks that forward every notification to events.
// Once ctx is done, notifications the consumer has not taken are dropped.
func ChannelHooks(ctx context.Context, events chan<- Event) Hooks {
	return Hooks{
		OnPartial: func(text string) {
			sendEvent(ctx, events, Event{Type: EventTypePartial, Content: text})
		},
		OnToolEvent: func(ev ToolEvent) {
			sendEvent(ctx, events, Event{Type: EventTypeTool, Tool: &ev})
		},
		OnPlanning: func(u PlanningUpdate) {
			sendEvent(ctx, events, Event{Type: EventTypePlanning, Planning: &u})
		},
	}
}

func sendEvent(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
