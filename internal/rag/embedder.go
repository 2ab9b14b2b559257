package rag

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the vector cache.
const DefaultCacheSize = 10000

// Embedder turns texts into vectors, one per text in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// CachedEmbedder memoizes vectors by trimmed text in an LRU cache. Only
// texts not yet cached are sent to the underlying embedder.
type CachedEmbedder struct {
	embedder Embedder
	cache    *lru.Cache[string, []float64]
}

// NewCachedEmbedder wraps e with a cache of up to size vectors.
// size <= 0 means DefaultCacheSize.
func NewCachedEmbedder(e Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// 只有 size <= 0 才会出错
	cache, _ := lru.New[string, []float64](size)
	return &CachedEmbedder{embedder: e, cache: cache}
}

// Embed implements Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var (
		missing []string
		slots   = make(map[string][]int)
	)
	for i, t := range texts {
		key := strings.TrimSpace(t)
		if v, ok := c.cache.Get(key); ok {
			out[i] = v
			continue
		}
		if _, queued := slots[key]; !queued {
			missing = append(missing, t)
		}
		slots[key] = append(slots[key], i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.embedder.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for %d texts", len(vecs), len(missing))
	}

	for n, t := range missing {
		key := strings.TrimSpace(t)
		c.cache.Add(key, vecs[n])
		for _, i := range slots[key] {
			out[i] = vecs[n]
		}
	}
	return out, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}
