// Package embed adapts an Embedding Service collaborator (§6) into the
// core's model.Embedder contract, adding an LRU cache in front of it so
// repeated queries skip the network round-trip. The cache shape here
// follows the teacher's cached-embedder wrapper.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dtrag/retrieval-core/internal/model"
)

// DefaultCacheSize is the default number of query embeddings kept in memory.
const DefaultCacheSize = 1000

// CachedEmbedder wraps a model.Embedder with LRU caching so identical
// query text never pays the embedding service's latency twice.
type CachedEmbedder struct {
	inner model.Embedder
	cache *lru.Cache[string, model.Embedding]
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size.
// A non-positive size falls back to DefaultCacheSize.
func NewCachedEmbedder(inner model.Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, model.Embedding](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached embedding for text when present, otherwise
// computes it via the wrapped embedder and caches the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (model.Embedding, error) {
	key := cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

var _ model.Embedder = (*CachedEmbedder)(nil)
