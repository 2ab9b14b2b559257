package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatkit/internal/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(Config{BaseURL: srv.URL, APIKey: "sk-test", Model: "test-model"})
	t.Cleanup(func() {
		c.ResetConnections()
		srv.Close()
	})
	return c
}

func TestStream_RequestShape(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n")
	})

	params := json.RawMessage(`{"type":"object"}`)
	req := provider.ChatRequest{
		Messages: []provider.Message{
			provider.SystemMessage("sys"),
			provider.UserMessage("q"),
			{Role: provider.RoleAssistant, ToolCalls: []provider.ToolCall{{ID: "c1", Name: "calculator", Arguments: "{}"}}},
			provider.ToolResultMessage("c1", "calculator", "15"),
		},
		Tools:       []provider.Tool{{Type: "function", Function: provider.ToolFunction{Name: "calculator", Parameters: params}}},
		Temperature: 0.3,
	}

	ch, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	events := collect(ch)
	require.Len(t, events, 2)
	assert.Equal(t, "hi", events[0].Delta)

	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, true, captured["stream"])
	assert.Equal(t, "auto", captured["tool_choice"])
	assert.InDelta(t, 0.3, captured["temperature"], 1e-9)

	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 4)
	assistant := msgs[2].(map[string]any)
	content, present := assistant["content"]
	assert.True(t, present)
	assert.Nil(t, content, "tool-call-only assistant message carries null content")
	calls := assistant["tool_calls"].([]any)
	assert.Equal(t, "function", calls[0].(map[string]any)["type"])

	tool := msgs[3].(map[string]any)
	assert.Equal(t, "c1", tool["tool_call_id"])
	assert.Equal(t, "15", tool["content"])
}

func TestStream_ToolChoiceNoneWithoutTools(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := c.Stream(context.Background(), provider.ChatRequest{
		Messages:   []provider.Message{provider.UserMessage("q")},
		ToolChoice: provider.ToolChoiceNone,
	})
	require.NoError(t, err)
	collect(ch)

	assert.Equal(t, "none", captured["tool_choice"])
	_, hasTools := captured["tools"]
	assert.False(t, hasTools)
}

func TestBuildRequest_ZeroTemperatureIsSent(t *testing.T) {
	c := New(Config{APIKey: "sk-test", Model: "deepseek-chat"})

	body, err := json.Marshal(c.buildRequest(provider.ChatRequest{
		Messages: []provider.Message{provider.UserMessage("q")},
	}, true))
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(body, &wire))
	temperature, ok := wire["temperature"]
	require.True(t, ok, "temperature missing from %s", body)
	assert.Equal(t, 0.0, temperature)
}

func TestStream_MissingCredential(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Stream(context.Background(), provider.ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, provider.ErrCodeMissingCredential, provider.CodeOf(err))
}

func TestStream_ErrorStatus(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   provider.ErrorCode
	}{
		{http.StatusUnauthorized, `{"error":{"message":"invalid key","type":"auth"}}`, provider.ErrCodeAuthFailed},
		{http.StatusTooManyRequests, `rate limited`, provider.ErrCodeRateLimited},
		{http.StatusServiceUnavailable, ``, provider.ErrCodeServiceUnavailable},
		{http.StatusBadRequest, `{"error":{"message":"maximum context length is 8k"}}`, provider.ErrCodeContextWindowExceeded},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := c.Stream(context.Background(), provider.ChatRequest{})
			require.Error(t, err)
			assert.Equal(t, tt.want, provider.CodeOf(err))
		})
	}
}

func TestChat_ToolCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"calculator","arguments":"{\"num1\":1}"}}]},
			"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`)
	})

	resp, err := c.Chat(context.Background(), provider.ChatRequest{Messages: []provider.Message{provider.UserMessage("q")}})
	require.NoError(t, err)
	assert.Empty(t, resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "calculator", resp.ToolCalls[0].Name)
	assert.Equal(t, `{"num1":1}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, provider.FinishReasonToolCalls, resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestChat_Content(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello","reasoning_content":"hmm"},"finish_reason":"stop"}]}`)
	})

	resp, err := c.Chat(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "hmm", resp.Thinking)
	assert.Equal(t, provider.FinishReasonStop, resp.FinishReason)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{BaseURL: "https://example.com/v1/"})
	assert.Equal(t, "https://example.com/v1", c.baseURL)
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, ProviderName, c.Name())
}
