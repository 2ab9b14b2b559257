package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chatkit/internal/storage"
)

// SessionStore is the read/delete side of transcripts; *storage.DB satisfies it.
type SessionStore interface {
	ListSessions(limit, offset int) ([]*storage.Session, error)
	GetSession(id string) (*storage.Session, error)
	GetMessages(sessionID string, limit int) ([]*storage.Message, error)
	DeleteSession(id string) error
}

// SessionDetail is a session with its messages.
type SessionDetail struct {
	*storage.Session
	Messages []*storage.Message `json:"messages"`
}

// Sessions serves the /api/v1/sessions endpoints.
type Sessions struct {
	store SessionStore
}

// NewSessions creates the sessions handlers.
func NewSessions(store SessionStore) *Sessions {
	return &Sessions{store: store}
}

// Register mounts the routes on r.
func (s *Sessions) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/sessions", s.List).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/sessions/{id}", s.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/sessions/{id}", s.Delete).Methods(http.MethodDelete)
}

// List handles GET /api/v1/sessions?limit=&offset=.
func (s *Sessions) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	sessions, err := s.store.ListSessions(limit, offset)
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []*storage.Session{}
	}
	SendJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Get handles GET /api/v1/sessions/{id}.
func (s *Sessions) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := s.store.GetSession(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	messages, err := s.store.GetMessages(id, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if messages == nil {
		messages = []*storage.Message{}
	}
	SendJSON(w, http.StatusOK, SessionDetail{Session: session, Messages: messages})
}

// Delete handles DELETE /api/v1/sessions/{id}.
func (s *Sessions) Delete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(mux.Vars(r)["id"]); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Sessions) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
