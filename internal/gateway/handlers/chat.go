package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"chatkit/internal/provider"
	"chatkit/internal/runner"
	"chatkit/internal/storage"
	"chatkit/internal/workflow"
	"chatkit/pkg/logger"
)

const titleRunes = 30

// Assistant answers a conversation; *runner.Runner satisfies it.
type Assistant interface {
	Respond(ctx context.Context, history []provider.Message, hooks runner.Hooks) (*runner.Reply, error)
}

// Transcripts persists conversations; *storage.DB satisfies it.
type Transcripts interface {
	CreateSession(title, model string) (*storage.Session, error)
	History(sessionID string) ([]provider.Message, error)
	AppendMessages(sessionID string, msgs []provider.Message) error
	SetLastSession(id string) error
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	// SessionID continues a stored session. Empty starts a new one when
	// transcripts are enabled.
	SessionID string `json:"session_id,omitempty"`

	// Message is the new user message.
	Message string `json:"message"`

	// History is prior conversation supplied by the client. It is only
	// used when transcripts are disabled.
	History []provider.Message `json:"history,omitempty"`
}

// ChatResponse is the reply to a chat request.
type ChatResponse struct {
	SessionID string             `json:"session_id,omitempty"`
	Content   string             `json:"content"`
	Debug     string             `json:"debug,omitempty"`
	Plan      *workflow.Plan     `json:"plan,omitempty"`
	Usage     *provider.Usage    `json:"usage,omitempty"`
	Tools     []runner.ToolEvent `json:"tools,omitempty"`
}

// ErrEmptyMessage rejects a request without a user message.
var ErrEmptyMessage = errors.New("message is required")

// Chat serves chat requests over HTTP and backs the websocket chat frames.
type Chat struct {
	assistant Assistant
	store     Transcripts
	model     string
}

// NewChat creates a chat service. store may be nil to disable transcripts.
func NewChat(assistant Assistant, store Transcripts, model string) *Chat {
	return &Chat{assistant: assistant, store: store, model: model}
}

// Complete answers req. hooks observe the request as it runs; tool events
// are also collected into the response.
func (c *Chat) Complete(ctx context.Context, req ChatRequest, hooks runner.Hooks) (*ChatResponse, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}

	sessionID, history, err := c.history(req)
	if err != nil {
		return nil, err
	}
	user := provider.UserMessage(req.Message)
	history = append(history, user)

	resp := &ChatResponse{SessionID: sessionID}
	onTool := hooks.OnToolEvent
	hooks.OnToolEvent = func(ev runner.ToolEvent) {
		resp.Tools = append(resp.Tools, ev)
		if onTool != nil {
			onTool(ev)
		}
	}

	reply, err := c.assistant.Respond(ctx, history, hooks)
	if err != nil {
		return nil, err
	}
	resp.Content = reply.Content
	resp.Debug = reply.Debug
	resp.Plan = reply.Plan
	resp.Usage = reply.Usage

	if c.store != nil {
		// 只保存用户消息与最终回答，中间的工具往返不落库
		if err := c.store.AppendMessages(sessionID, []provider.Message{user, provider.AssistantMessage(reply.Content)}); err != nil {
			logger.Warn().Err(err).Str("session", sessionID).Msg("Failed to persist chat turn")
		} else if err := c.store.SetLastSession(sessionID); err != nil {
			logger.Warn().Err(err).Str("session", sessionID).Msg("Failed to record last session")
		}
	}
	return resp, nil
}

func (c *Chat) history(req ChatRequest) (string, []provider.Message, error) {
	if c.store == nil {
		return "", append([]provider.Message(nil), req.History...), nil
	}
	if req.SessionID == "" {
		s, err := c.store.CreateSession(title(req.Message), c.model)
		if err != nil {
			return "", nil, err
		}
		return s.ID, nil, nil
	}
	history, err := c.store.History(req.SessionID)
	if err != nil {
		return "", nil, err
	}
	return req.SessionID, history, nil
}

func title(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	if utf8.RuneCountInString(line) <= titleRunes {
		return line
	}
	return string([]rune(line)[:titleRunes]) + "…"
}

// ServeHTTP handles POST /api/v1/chat.
func (c *Chat) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := DecodeJSON(r, &req); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	resp, err := c.Complete(r.Context(), req, runner.Hooks{})
	if err != nil {
		status, code, msg := classify(err)
		SendError(w, status, code, msg)
		return
	}
	SendJSON(w, http.StatusOK, resp)
}

// classify maps a chat failure to an HTTP status, error code and message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, runner.ErrNoMessages):
		return http.StatusBadRequest, ErrCodeInvalidRequest, err.Error()
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "session not found"
	case errors.As(err, new(*workflow.StepError)):
		return http.StatusUnprocessableEntity, ErrCodeWorkflowFailed, runner.ErrorMessage(err)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeGatewayTimeout, runner.ErrorMessage(err)
	default:
		return http.StatusBadGateway, ErrCodeUpstreamError, runner.ErrorMessage(err)
	}
}

// ErrorCode returns the error code classify would report for err.
func ErrorCode(err error) string {
	_, code, _ := classify(err)
	return code
}
