package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatkit/internal/provider"
)

func TestEmbed_BatchesAndOrders(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultEmbeddingModel, req.Model)
		mu.Lock()
		batches = append(batches, req.Input)
		mu.Unlock()

		// 倒序返回, 依赖 index 还原顺序
		var data []string
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, fmt.Sprintf(`{"index":%d,"embedding":[%d]}`, i, len(req.Input[i])))
		}
		fmt.Fprintf(w, `{"data":[%s],"model":"%s"}`, strings.Join(data, ","), req.Model)
	})

	texts := make([]string, MaxEmbeddingBatch+2)
	for i := range texts {
		texts[i] = strings.Repeat("a", i+1)
	}
	vecs, err := c.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, []float64{float64(i + 1)}, v)
	}
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], MaxEmbeddingBatch)
	assert.Len(t, batches[1], 2)
}

func TestEmbed_Errors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	})
	_, err := c.Embed(context.Background(), []string{"x"})
	assert.Equal(t, provider.ErrCodeAuthFailed, provider.CodeOf(err))

	short := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})
	_, err = short.Embed(context.Background(), []string{"x"})
	require.ErrorContains(t, err, "got 0 vectors for 1 inputs")

	_, err = New(Config{}).Embed(context.Background(), []string{"x"})
	assert.Equal(t, provider.ErrCodeMissingCredential, provider.CodeOf(err))
}
