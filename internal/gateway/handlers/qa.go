package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"chatkit/internal/rag"
	"chatkit/internal/runner"
)

// Embedding request limits.
const (
	MaxEmbeddingTexts = 64
	MaxEmbeddingRunes = 4000
)

// DocumentQA answers questions from documents and exposes its embedder.
type DocumentQA interface {
	Ask(ctx context.Context, question string, chunks []string, hooks runner.Hooks) (*rag.Answer, error)
	AskText(ctx context.Context, question, text string, hooks runner.Hooks) (*rag.Answer, error)
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// QARequest is the body of POST /api/v1/qa. Either Chunks or Text is used;
// Text is split with the server's chunker.
type QARequest struct {
	Question string   `json:"question"`
	Chunks   []string `json:"chunks,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// EmbeddingsRequest is the body of POST /api/v1/embeddings.
type EmbeddingsRequest struct {
	Texts   []string `json:"texts"`
	Purpose string   `json:"purpose,omitempty"`
}

// EmbeddingsResponse carries vectors and the injection scan of the input.
type EmbeddingsResponse struct {
	Embeddings [][]float64    `json:"embeddings"`
	Meta       EmbeddingsMeta `json:"meta"`
}

// EmbeddingsMeta describes an embeddings response.
type EmbeddingsMeta struct {
	Purpose string `json:"purpose,omitempty"`
	rag.InjectionScan
}

// QA serves the document QA endpoints.
type QA struct {
	qa DocumentQA
}

// NewQA creates the QA handlers.
func NewQA(qa DocumentQA) *QA {
	return &QA{qa: qa}
}

// Register mounts the routes on r.
func (h *QA) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/qa", h.Ask).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/embeddings", h.Embeddings).Methods(http.MethodPost)
}

// Ask handles POST /api/v1/qa.
func (h *QA) Ask(w http.ResponseWriter, r *http.Request) {
	var req QARequest
	if err := DecodeJSON(r, &req); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	var (
		ans *rag.Answer
		err error
	)
	if len(req.Chunks) > 0 {
		ans, err = h.qa.Ask(r.Context(), req.Question, req.Chunks, runner.Hooks{})
	} else {
		ans, err = h.qa.AskText(r.Context(), req.Question, req.Text, runner.Hooks{})
	}
	if err != nil {
		status, code, msg := classifyQA(err)
		SendError(w, status, code, msg)
		return
	}
	SendJSON(w, http.StatusOK, ans)
}

// Embeddings handles POST /api/v1/embeddings.
func (h *QA) Embeddings(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingsRequest
	if err := DecodeJSON(r, &req); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	texts, err := validateEmbeddings(&req)
	if err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	scan := rag.ScanInjectionRisk(texts)
	vecs, err := h.qa.Embed(r.Context(), texts)
	if err != nil {
		status, code, msg := classify(err)
		SendError(w, status, code, msg)
		return
	}
	SendJSON(w, http.StatusOK, EmbeddingsResponse{
		Embeddings: vecs,
		Meta:       EmbeddingsMeta{Purpose: req.Purpose, InjectionScan: scan},
	})
}

// validateEmbeddings returns the trimmed texts.
func validateEmbeddings(req *EmbeddingsRequest) ([]string, error) {
	switch {
	case len(req.Texts) == 0:
		return nil, errors.New("texts 不能为空数组")
	case len(req.Texts) > MaxEmbeddingTexts:
		return nil, fmt.Errorf("texts 最多支持 %d 条", MaxEmbeddingTexts)
	}
	switch req.Purpose {
	case "", "query", "doc":
	default:
		return nil, errors.New(`purpose 必须是 "query" 或 "doc"`)
	}

	texts := make([]string, len(req.Texts))
	for i, t := range req.Texts {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("texts[%d] 不能为空字符串", i)
		}
		if utf8.RuneCountInString(t) > MaxEmbeddingRunes {
			return nil, fmt.Errorf("texts[%d] 长度不能超过 %d 字符", i, MaxEmbeddingRunes)
		}
		texts[i] = t
	}
	return texts, nil
}

func classifyQA(err error) (int, string, string) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion), errors.Is(err, rag.ErrNoChunks):
		return http.StatusBadRequest, ErrCodeInvalidRequest, err.Error()
	case errors.Is(err, rag.ErrInvalidAnswer):
		return http.StatusBadGateway, ErrCodeUpstreamError, err.Error()
	}
	return classify(err)
}
