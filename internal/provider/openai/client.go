package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"chatkit/internal/provider"
	"chatkit/pkg/logger"
)

var _ provider.Provider = (*Client)(nil)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	maxTokens      int
	httpClient   *http.Client // non-streaming, overall timeout
	streamClient *http.Client // streaming, transport timeouts only
}

// New creates a Client. A missing API key is not rejected here; requests
// fail with ErrCodeMissingCredential so the caller can report it once.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		apiKey:         strings.TrimSpace(cfg.APIKey),
		baseURL:        base,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		maxTokens:      cfg.MaxTokens,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		// http.Client.Timeout covers body reads and would cut long SSE streams.
		streamClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   15 * time.Second,
				ResponseHeaderTimeout: cfg.Timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Model returns the default model used when a request leaves it empty.
func (c *Client) Model() string {
	return c.model
}

// ResetConnections closes idle HTTP connections on both clients.
func (c *Client) ResetConnections() {
	c.httpClient.CloseIdleConnections()
	c.streamClient.CloseIdleConnections()
}

// Chat sends a non-streaming completion request.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	body := c.buildRequest(req, false)

	logger.Debug().Str("model", body.Model).Int("messages", len(body.Messages)).Msg("Chat request")

	resp, err := c.post(ctx, c.httpClient, completionsPath, body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.networkError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, raw)
	}
	if len(raw) == 0 {
		return nil, provider.NewProviderError(provider.ErrCodeServiceUnavailable, "empty response body", ProviderName, true)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, provider.NewProviderError(provider.ErrCodeInvalidRequest,
			fmt.Sprintf("decode response: %v", err), ProviderName, false)
	}
	if out.Error != nil {
		return nil, provider.NewProviderError(provider.ErrCodeUnknown, out.Error.Message, ProviderName, false)
	}
	return convertResponse(&out), nil
}

// Stream sends a streaming completion request.
func (c *Client) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	body := c.buildRequest(req, true)

	logger.Debug().Str("model", body.Model).
		Int("messages", len(body.Messages)).
		Int("tools", len(body.Tools)).
		Str("tool_choice", body.ToolChoice).
		Msg("Stream request")

	resp, err := c.post(ctx, c.streamClient, completionsPath, body, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, c.handleErrorResponse(resp.StatusCode, raw)
	}
	return ProcessStream(resp.Body), nil
}

func (c *Client) buildRequest(req provider.ChatRequest, stream bool) *chatRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	out := &chatRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
		Stream:   stream,
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		out.MaxTokens = maxTokens
	}
	// 0 是合法取值, 总是显式发送
	temperature := req.Temperature
	out.Temperature = &temperature

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, convertMessage(msg))
	}

	for _, tool := range req.Tools {
		typ := tool.Type
		if typ == "" {
			typ = "function"
		}
		out.Tools = append(out.Tools, chatTool{
			Type: typ,
			Function: chatFunction{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	switch {
	case req.ToolChoice != "":
		out.ToolChoice = string(req.ToolChoice)
	case len(out.Tools) > 0:
		out.ToolChoice = string(provider.ToolChoiceAuto)
	}
	return out
}

func convertMessage(msg provider.Message) chatMessage {
	cm := chatMessage{
		Role:       msg.Role,
		ToolCallID: msg.ToolCallID,
	}
	if msg.Role == provider.RoleTool {
		cm.Name = msg.Name
	}
	// An assistant turn that only requests tools carries null content.
	if !(msg.Role == provider.RoleAssistant && len(msg.ToolCalls) > 0 && msg.Content == "") {
		content := msg.Content
		cm.Content = &content
	}
	for _, tc := range msg.ToolCalls {
		wire := chatToolCall{ID: tc.ID, Type: tc.Type}
		if wire.Type == "" {
			wire.Type = "function"
		}
		wire.Function.Name = tc.Name
		wire.Function.Arguments = tc.Arguments
		cm.ToolCalls = append(cm.ToolCalls, wire)
	}
	return cm
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, body any, stream bool) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, provider.NewProviderError(provider.ErrCodeMissingCredential,
			"API key is not configured", ProviderName, false)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, c.networkError(err)
	}
	return resp, nil
}

func (c *Client) networkError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &provider.ProviderError{
			Code:      provider.ErrCodeTimeout,
			Message:   err.Error(),
			Provider:  ProviderName,
			Retryable: true,
		}
	}
	return &provider.ProviderError{
		Code:      provider.ErrCodeNetworkError,
		Message:   err.Error(),
		Provider:  ProviderName,
		Retryable: true,
	}
}

// handleErrorResponse maps a non-2xx response to a ProviderError.
func (c *Client) handleErrorResponse(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		msg = parsed.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	pe := &provider.ProviderError{Message: msg, Provider: ProviderName, Status: status}
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "context length") || strings.Contains(lower, "maximum context"):
		pe.Code = provider.ErrCodeContextWindowExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Code = provider.ErrCodeAuthFailed
	case status == http.StatusPaymentRequired:
		pe.Code = provider.ErrCodeQuotaExceeded
	case status == http.StatusTooManyRequests:
		pe.Code = provider.ErrCodeRateLimited
		pe.Retryable = true
	case status == http.StatusNotFound:
		pe.Code = provider.ErrCodeModelNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		pe.Code = provider.ErrCodeInvalidRequest
	case status >= 500:
		pe.Code = provider.ErrCodeServiceUnavailable
		pe.Retryable = true
	default:
		pe.Code = provider.ErrCodeUnknown
	}

	logger.Warn().Int("status", status).Str("code", string(pe.Code)).Msg("Provider error response")
	return pe
}

func convertResponse(resp *chatResponse) *provider.ChatResponse {
	out := &provider.ChatResponse{FinishReason: provider.FinishReasonStop}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != nil {
			out.Content = *choice.Message.Content
		}
		out.Thinking = choice.Message.ReasoningContent
		for i, tc := range choice.Message.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			typ := tc.Type
			if typ == "" {
				typ = "function"
			}
			out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
				ID:        tc.ID,
				Index:     idx,
				Type:      typ,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if choice.FinishReason != "" {
			out.FinishReason = choice.FinishReason
		}
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = provider.FinishReasonToolCalls
	}
	out.Usage = convertUsage(resp.Usage)
	return out
}
