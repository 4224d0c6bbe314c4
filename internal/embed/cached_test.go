package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmbedder struct {
	embedCalls     atomic.Int64
	returnedVector model.Embedding
}

func newMockEmbedder(dims int) *mockEmbedder {
	vec := make(model.Embedding, dims)
	for i := range vec {
		vec[i] = float32(i) * 0.001
	}
	return &mockEmbedder{returnedVector: vec}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (model.Embedding, error) {
	m.embedCalls.Add(1)
	return m.returnedVector, nil
}

func TestCachedEmbedder_ImplementsEmbedderInterface(t *testing.T) {
	var _ model.Embedder = NewCachedEmbedder(newMockEmbedder(768), 100)
}

func TestCachedEmbedder_CacheHit_ReturnsWithoutCallingInner(t *testing.T) {
	// Given: a cached embedder
	inner := newMockEmbedder(768)
	cached := NewCachedEmbedder(inner, 100)

	ctx := context.Background()
	text := "vector search over taxonomy-scoped chunks"

	// When: I embed the same text twice
	result1, err1 := cached.Embed(ctx, text)
	result2, err2 := cached.Embed(ctx, text)

	// Then: inner embedder is called only once
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, int64(1), inner.embedCalls.Load(), "inner should be called once")
	assert.Equal(t, result1, result2, "cached results should match")
}

func TestCachedEmbedder_CacheMiss_CallsInnerForNewText(t *testing.T) {
	inner := newMockEmbedder(768)
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()

	_, err1 := cached.Embed(ctx, "text one")
	_, err2 := cached.Embed(ctx, "text two")
	_, err3 := cached.Embed(ctx, "text three")

	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)
	assert.Equal(t, int64(3), inner.embedCalls.Load(), "inner should be called three times")
}

func TestNewCachedEmbedder_NonPositiveSize_UsesDefault(t *testing.T) {
	inner := newMockEmbedder(768)
	cached := NewCachedEmbedder(inner, 0)

	_, err := cached.Embed(context.Background(), "test")
	require.NoError(t, err)
}

func TestCachedEmbedder_CacheEviction_OldestEvictedFirst(t *testing.T) {
	// Given: a cached embedder with a small cache
	inner := newMockEmbedder(768)
	cached := NewCachedEmbedder(inner, 3)
	ctx := context.Background()

	// When: I embed 4 different texts, exceeding capacity
	_, _ = cached.Embed(ctx, "text1") // evicted
	_, _ = cached.Embed(ctx, "text2")
	_, _ = cached.Embed(ctx, "text3")
	_, _ = cached.Embed(ctx, "text4")

	inner.embedCalls.Store(0)

	// Then: the evicted text misses again
	_, err := cached.Embed(ctx, "text1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.embedCalls.Load(), "evicted text should require recomputation")

	// And: recently used texts are still cached
	inner.embedCalls.Store(0)
	_, _ = cached.Embed(ctx, "text3")
	_, _ = cached.Embed(ctx, "text4")
	assert.Equal(t, int64(0), inner.embedCalls.Load(), "recent texts should be cached")
}

func TestCachedEmbedder_ConcurrentAccess_NoRace(t *testing.T) {
	inner := newMockEmbedder(768)
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()
	texts := []string{"a", "b", "c", "d", "e"}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_, _ = cached.Embed(ctx, texts[j%len(texts)])
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
