package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"chatkit/internal/provider"
	"chatkit/pkg/logger"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string         `json:"model"`
	Error *chatErrorInfo `json:"error,omitempty"`
}

// EmbeddingModel returns the model used by Embed.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

// Embed returns one vector per text, in input order. Large inputs are sent
// in batches of MaxEmbeddingBatch, one after another.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += MaxEmbeddingBatch {
		end := min(start+MaxEmbeddingBatch, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	logger.Debug().Str("model", c.embeddingModel).Int("texts", len(texts)).Msg("Embedding request")

	resp, err := c.post(ctx, c.httpClient, embeddingsPath, &embeddingRequest{Model: c.embeddingModel, Input: texts}, false)
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

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, provider.NewProviderError(provider.ErrCodeInvalidRequest,
			fmt.Sprintf("decode embeddings: %v", err), ProviderName, false)
	}
	if parsed.Error != nil {
		return nil, provider.NewProviderError(provider.ErrCodeUnknown, parsed.Error.Message, ProviderName, false)
	}
	if len(parsed.Data) != len(texts) {
		return nil, provider.NewProviderError(provider.ErrCodeUnknown,
			fmt.Sprintf("embeddings: got %d vectors for %d inputs", len(parsed.Data), len(texts)), ProviderName, false)
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float64, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
