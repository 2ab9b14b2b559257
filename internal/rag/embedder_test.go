package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder maps each text to a one-element vector of its byte
// length and records every batch.
type countingEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	short   bool
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t))}
	}
	if e.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 0)
	ctx := context.Background()

	vecs, err := c.Embed(ctx, []string{"ab", " ab ", "xyz"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}, {2}, {3}}, vecs)

	vecs, err = c.Embed(ctx, []string{"xyz", "k"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3}, {1}}, vecs)

	assert.Equal(t, [][]string{{"ab", "xyz"}, {"k"}}, inner.batches)
	assert.Equal(t, 3, c.Len())

	_, err = c.Embed(ctx, []string{"ab"})
	require.NoError(t, err)
	assert.Len(t, inner.batches, 2, "fully cached input must not call the embedder")
}

func TestCachedEmbedder_Evicts(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = c.Embed(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, inner.batches[1], "oldest entry was evicted")
}

func TestCachedEmbedder_Errors(t *testing.T) {
	boom := errors.New("boom")
	c := NewCachedEmbedder(&countingEmbedder{err: boom}, 0)
	_, err := c.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	short := NewCachedEmbedder(&countingEmbedder{short: true}, 0)
	_, err = short.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "returned 1 vectors for 2 texts")
}
