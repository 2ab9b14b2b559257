package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"chatkit/internal/provider"
)

func TestSessions(t *testing.T) {
	db := memoryDB(t)
	s, _ := db.CreateSession("trip", "")
	_ = db.AppendMessages(s.ID, []provider.Message{provider.UserMessage("q"), provider.AssistantMessage("a")})

	r := mux.NewRouter()
	NewSessions(db).Register(r)
	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	w := do(http.MethodGet, "/api/v1/sessions")
	var list struct {
		Sessions []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].Title != "trip" {
		t.Errorf("list = %+v", list)
	}

	w = do(http.MethodGet, "/api/v1/sessions/"+s.ID)
	var detail struct {
		ID       string `json:"id"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail.ID != s.ID || len(detail.Messages) != 2 || detail.Messages[1].Content != "a" {
		t.Errorf("detail = %+v", detail)
	}

	if w := do(http.MethodGet, "/api/v1/sessions?limit=x"); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
	if w := do(http.MethodDelete, "/api/v1/sessions/"+s.ID); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := do(http.MethodGet, "/api/v1/sessions/"+s.ID); w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d", w.Code)
	}
	if w := do(http.MethodDelete, "/api/v1/sessions/"+s.ID); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", w.Code)
	}
}
