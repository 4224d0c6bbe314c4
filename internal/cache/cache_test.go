package cache

import (
	"testing"
	"time"

	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutThenGet_ReturnsDefensiveCopy(t *testing.T) {
	// Given: a cache with one entry
	c := New(10, time.Minute)
	hits := []model.SearchHit{{ChunkID: "a", Text: "hello"}}
	c.Put("key1", "fp1", hits)

	// When: getting it back and mutating the result
	got, ok := c.Get("key1")
	require.True(t, ok)
	got[0].Text = "mutated"

	// Then: the cached copy is unaffected
	got2, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "hello", got2[0].Text)
}

func TestCache_Get_MissingKey_ReturnsFalse(t *testing.T) {
	c := New(10, time.Minute)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestCache_Get_ExpiredEntry_ReturnsFalse(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	c.Put("key1", "fp1", []model.SearchHit{{ChunkID: "a"}})

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("key1")
	assert.False(t, ok)
}

func TestCache_InvalidatePrefix_EvictsMatchingFingerprint(t *testing.T) {
	c := New(10, time.Minute)
	c.Put("key1", "fp-taxonomy-v1", []model.SearchHit{{ChunkID: "a"}})
	c.Put("key2", "fp-taxonomy-v1", []model.SearchHit{{ChunkID: "b"}})
	c.Put("key3", "fp-other", []model.SearchHit{{ChunkID: "c"}})

	c.InvalidatePrefix("fp-taxonomy-v1")

	_, ok1 := c.Get("key1")
	_, ok2 := c.Get("key2")
	_, ok3 := c.Get("key3")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}

func TestCache_NilCache_GetAndPutAreNoOps(t *testing.T) {
	var c *Cache
	c.Put("k", "fp", []model.SearchHit{{ChunkID: "a"}})

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCanonicalKey_CaseAndWhitespaceInsensitive(t *testing.T) {
	k1, _ := CanonicalKey("  Vector Search  ", model.Filter{}, model.Options{})
	k2, _ := CanonicalKey("vector search", model.Filter{}, model.Options{})
	assert.Equal(t, k1, k2)
}

func TestCanonicalKey_DifferentFilters_ProduceDifferentKeys(t *testing.T) {
	k1, fp1 := CanonicalKey("query", model.Filter{ContentTypes: []string{"pdf"}}, model.Options{})
	k2, fp2 := CanonicalKey("query", model.Filter{ContentTypes: []string{"html"}}, model.Options{})
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, fp1, fp2)
}

func TestCanonicalKey_NodeIDOrderIndependent(t *testing.T) {
	k1, _ := CanonicalKey("query", model.Filter{TaxonomyNodeIDs: []string{"a", "b"}}, model.Options{})
	k2, _ := CanonicalKey("query", model.Filter{TaxonomyNodeIDs: []string{"b", "a"}}, model.Options{})
	assert.Equal(t, k1, k2)
}

func TestCanonicalKey_FloatQuantization_RoundsToSixDecimals(t *testing.T) {
	_, fp1 := CanonicalKey("q", model.Filter{MinConfidence: 0.70000001}, model.Options{})
	_, fp2 := CanonicalKey("q", model.Filter{MinConfidence: 0.7}, model.Options{})
	assert.Equal(t, fp1, fp2)
}
