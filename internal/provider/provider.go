// Package provider defines the LLM provider interface and types.
package provider

import "context"

// Streamer opens a streaming chat completion.
type Streamer interface {
	// Stream sends a chat request and returns a channel of streaming events.
	// The channel is closed after a done or error event.
	Stream(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
}

// Provider defines the interface for LLM providers.
type Provider interface {
	Streamer

	// Name returns the provider name.
	Name() string

	// Chat sends a chat request and returns the complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
