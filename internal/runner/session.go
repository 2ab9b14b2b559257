package runner

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"chatkit/internal/extract"
	"chatkit/internal/provider"
	"chatkit/pkg/logger"
)

// fallbackMaxTokens caps the non-streaming path when nothing else is set.
const fallbackMaxTokens = 300

// Options tune one exchange.
type Options struct {
	// IncludeTools sends the tool definitions with the request.
	IncludeTools bool

	// ToolChoice overrides the tool choice. Empty means auto when tools are
	// included and none otherwise.
	ToolChoice provider.ToolChoice

	// StreamThrough forwards raw content deltas to OnPartial. It is OR-ed
	// with Config.StreamThrough.
	StreamThrough bool

	// Hooks observe the exchange. Only OnPartial is used by a session.
	Hooks Hooks
}

func (o Options) toolChoice() provider.ToolChoice {
	if o.ToolChoice != "" {
		return o.ToolChoice
	}
	if o.IncludeTools {
		return provider.ToolChoiceAuto
	}
	return provider.ToolChoiceNone
}

// Result is the terminal outcome of one exchange: either answer text or a
// set of pending tool calls, never both.
type Result struct {
	// Content is the answer text; empty when ToolCalls is set.
	Content string

	// Debug is the reasoning summary, from the answer document or the
	// side channel.
	Debug string

	// ToolCalls are the aggregated calls, ordered by slot.
	ToolCalls []provider.ToolCall

	// Message is the assistant message to append to the conversation.
	Message provider.Message

	// Raw is the unprocessed content text.
	Raw string

	// Usage is token accounting, when the provider reports it.
	Usage *provider.Usage
}

// HasToolCalls reports whether the model asked for tools.
func (r *Result) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Session performs single request/response cycles against a provider.
// It holds no conversation state; each call reads a snapshot of history.
type Session struct {
	provider provider.Provider
	tools    []provider.Tool
	cfg      Config
	log      zerolog.Logger
}

// NewSession creates a Session. tools are the definitions sent when an
// exchange includes tools.
func NewSession(p provider.Provider, tools []provider.Tool, cfg Config) *Session {
	return &Session{
		provider: p,
		tools:    tools,
		cfg:      cfg.Normalize(),
		log:      logger.Component("session"),
	}
}

// Config returns the session's normalized config.
func (s *Session) Config() Config {
	return s.cfg
}

// Exchange runs one cycle on the streaming path, or on the non-streaming
// fallback when streaming is disabled.
func (s *Session) Exchange(ctx context.Context, history []provider.Message, opts Options) (*Result, error) {
	if !s.cfg.Stream {
		return s.RunOnce(ctx, history, opts)
	}
	return s.Run(ctx, history, opts)
}

// Run performs one streamed cycle.
//
// Content deltas are fed to an extractor for the configured result key,
// whose decoded runes go to OnPartial as they appear. With StreamThrough
// the raw deltas go to OnPartial instead. Tool-call deltas are aggregated;
// once any arrive the result is a tool-call result, later content is no
// longer streamed and the content is discarded.
func (s *Session) Run(ctx context.Context, history []provider.Message, opts Options) (*Result, error) {
	req, err := s.buildRequest(history, opts, true)
	if err != nil {
		return nil, err
	}

	through := opts.StreamThrough || s.cfg.StreamThrough
	hooks := opts.Hooks

	var live strings.Builder
	ext := extract.New(s.cfg.ResultKey, func(r rune) {
		live.WriteRune(r)
		if !through {
			hooks.partial(string(r))
		}
	})

	s.log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Bool("tools", len(req.Tools) > 0).
		Str("tool_choice", string(req.ToolChoice)).
		Msg("Stream request")

	events, err := s.provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		raw      strings.Builder
		debug    strings.Builder
		agg      = NewAggregator()
		usage    *provider.Usage
		firstErr error
	)

	// Drain fully; the producer closes the channel after done or error.
	for ev := range events {
		switch ev.Type {
		case provider.EventTypeContent:
			raw.WriteString(ev.Delta)
			// 已进入工具调用轮, 后续文本不再是回答
			if agg.Triggered() {
				continue
			}
			ext.Feed(ev.Delta)
			if through {
				hooks.partial(ev.Delta)
			}
		case provider.EventTypeToolCall:
			if ev.ToolCall != nil {
				agg.Add(*ev.ToolCall)
			}
		case provider.EventTypeThinking:
			debug.WriteString(ev.Thinking)
		case provider.EventTypeDone:
			if ev.Usage != nil {
				usage = ev.Usage
			}
		case provider.EventTypeError:
			if firstErr == nil {
				firstErr = ev.Error
			}
		}
	}
	ext.Finalize()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.log.Debug().
		Int("content_len", raw.Len()).
		Int("tool_calls", len(agg.slots)).
		Int("debug_len", debug.Len()).
		Str("extractor", ext.State().String()).
		Msg("Stream ended")

	if agg.Triggered() {
		return toolResult(agg.Calls(), debug.String(), raw.String(), usage), nil
	}

	content, dbg := resolveContent(raw.String(), live.String(), debug.String(), s.cfg.ResultKey)
	return &Result{
		Content: content,
		Debug:   dbg,
		Message: provider.AssistantMessage(content),
		Raw:     raw.String(),
		Usage:   usage,
	}, nil
}

// RunOnce performs one non-streaming cycle. The answer is resolved with the
// same rules as Run and delivered to OnPartial in one piece.
func (s *Session) RunOnce(ctx context.Context, history []provider.Message, opts Options) (*Result, error) {
	req, err := s.buildRequest(history, opts, false)
	if err != nil {
		return nil, err
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = fallbackMaxTokens
	}

	resp, err := s.provider.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.ToolCalls) > 0 {
		agg := NewAggregator()
		for i, tc := range resp.ToolCalls {
			tc.Index = i
			agg.Add(tc)
		}
		return toolResult(agg.Calls(), resp.Thinking, resp.Content, resp.Usage), nil
	}

	ext := extract.New(s.cfg.ResultKey, nil)
	ext.Feed(resp.Content)
	ext.Finalize()

	content, dbg := resolveContent(resp.Content, ext.Value(), resp.Thinking, s.cfg.ResultKey)
	opts.Hooks.partial(content)
	return &Result{
		Content: content,
		Debug:   dbg,
		Message: provider.AssistantMessage(content),
		Raw:     resp.Content,
		Usage:   resp.Usage,
	}, nil
}

// Ask sends history without tools and returns the raw model text. It is the
// capability handed to collaborators that need a side question answered.
func (s *Session) Ask(ctx context.Context, history []provider.Message) (string, error) {
	res, err := s.Exchange(ctx, history, Options{ToolChoice: provider.ToolChoiceNone})
	if err != nil {
		return "", err
	}
	return res.Raw, nil
}

func (s *Session) buildRequest(history []provider.Message, opts Options, stream bool) (provider.ChatRequest, error) {
	if s.provider == nil {
		return provider.ChatRequest{}, ErrNoProvider
	}
	if len(history) == 0 {
		return provider.ChatRequest{}, ErrNoMessages
	}
	req := provider.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    prepareHistory(history),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		ToolChoice:  opts.toolChoice(),
		Stream:      stream,
	}
	if opts.IncludeTools {
		req.Tools = s.tools
	}
	return req, nil
}

func toolResult(calls []provider.ToolCall, debug, raw string, usage *provider.Usage) *Result {
	return &Result{
		Debug:     debug,
		ToolCalls: calls,
		Message: provider.Message{
			Role:      provider.RoleAssistant,
			ToolCalls: calls,
		},
		Raw:   raw,
		Usage: usage,
	}
}
