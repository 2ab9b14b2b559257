package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatkit/internal/provider"
	"chatkit/internal/runner"
	"chatkit/internal/storage"
	"chatkit/internal/workflow"
)

// fakeAssistant answers with a fixed reply and records the history it saw.
type fakeAssistant struct {
	reply   *runner.Reply
	err     error
	history []provider.Message
}

func (f *fakeAssistant) Respond(_ context.Context, history []provider.Message, hooks runner.Hooks) (*runner.Reply, error) {
	f.history = history
	if f.err != nil {
		return nil, f.err
	}
	if hooks.OnToolEvent != nil {
		hooks.OnToolEvent(runner.ToolEvent{Type: runner.ToolEventSuccess, ToolName: "calculator", Result: 15.0})
	}
	if hooks.OnPartial != nil {
		hooks.OnPartial(f.reply.Content)
	}
	return f.reply, nil
}

func memoryDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(storage.MemoryPath)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body)))
	return w
}

func TestChat_StatelessHistory(t *testing.T) {
	a := &fakeAssistant{reply: &runner.Reply{Content: "15", Debug: "10+5"}}
	h := NewChat(a, nil, "m")

	w := postChat(t, h, `{"message":" 10 加 5 ","history":[{"role":"user","content":"早"},{"role":"assistant","content":"早上好"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Content != "15" || resp.Debug != "10+5" || resp.SessionID != "" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Tools) != 1 || resp.Tools[0].ToolName != "calculator" {
		t.Errorf("tools = %+v", resp.Tools)
	}
	if len(a.history) != 3 || a.history[2].Content != "10 加 5" || a.history[2].Role != provider.RoleUser {
		t.Errorf("history = %+v", a.history)
	}
}

func TestChat_PersistsTurns(t *testing.T) {
	db := memoryDB(t)
	a := &fakeAssistant{reply: &runner.Reply{Content: "北京今天晴"}}
	h := NewChat(a, db, "deepseek-chat")

	w := postChat(t, h, `{"message":"北京天气怎么样"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var first ChatResponse
	_ = json.Unmarshal(w.Body.Bytes(), &first)
	if first.SessionID == "" {
		t.Fatal("expected a new session id")
	}

	session, err := db.GetSession(first.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Title != "北京天气怎么样" || session.Model != "deepseek-chat" {
		t.Errorf("session = %+v", session)
	}
	if last, err := db.LastSession(); err != nil || last.ID != first.SessionID {
		t.Errorf("LastSession = %v, %v", last, err)
	}

	// 继续同一会话时历史来自存储
	w = postChat(t, h, `{"session_id":"`+first.SessionID+`","message":"明天呢"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if len(a.history) != 3 || a.history[1].Content != "北京今天晴" {
		t.Errorf("history = %+v", a.history)
	}
	if n, _ := db.CountMessages(first.SessionID); n != 4 {
		t.Errorf("stored messages = %d, want 4", n)
	}
}

func TestChat_Errors(t *testing.T) {
	db := memoryDB(t)

	tests := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"bad json", nil, `{`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"empty message", nil, `{"message":"  "}`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"unknown session", nil, `{"session_id":"nope","message":"hi"}`, http.StatusNotFound, ErrCodeNotFound},
		{"upstream", errors.New("connection refused"), `{"message":"hi"}`, http.StatusBadGateway, ErrCodeUpstreamError},
		{"timeout", context.DeadlineExceeded, `{"message":"hi"}`, http.StatusGatewayTimeout, ErrCodeGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChat(&fakeAssistant{err: tt.err, reply: &runner.Reply{}}, db, "")
			w := postChat(t, h, tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.code)
			}
		})
	}
}

func TestChat_WorkflowFailureNamesStep(t *testing.T) {
	stepErr := &workflow.StepError{StepID: 2, Action: "查询目的地天气", Err: errors.New("destination 不能为空")}
	h := NewChat(&fakeAssistant{err: fmt.Errorf("respond: %w", stepErr)}, memoryDB(t), "")

	w := postChat(t, h, `{"message":"明天去旅游"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error.Code != ErrCodeWorkflowFailed {
		t.Errorf("code = %s, want %s", resp.Error.Code, ErrCodeWorkflowFailed)
	}
	if want := "步骤 2（查询目的地天气）执行失败: destination 不能为空"; resp.Error.Message != want {
		t.Errorf("message = %q, want %q", resp.Error.Message, want)
	}
}

func TestTitle(t *testing.T) {
	if got := title("第一行\n第二行"); got != "第一行" {
		t.Errorf("title = %q", got)
	}
	long := strings.Repeat("长", 40)
	if got := title(long); got != strings.Repeat("长", titleRunes)+"…" {
		t.Errorf("title = %q", got)
	}
}
