package lexical

import (
	"context"
	"testing"
	"time"

	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func sampleChunks() []*model.Chunk {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []*model.Chunk{
		{ID: "c1", DocumentID: "d1", Text: "supervised learning requires labeled training data", ContentType: "markdown", ProcessedAt: now},
		{ID: "c2", DocumentID: "d2", Text: "unsupervised clustering finds structure without labels", ContentType: "pdf", ProcessedAt: now.AddDate(0, 0, 10)},
		{ID: "c3", DocumentID: "d3", Text: "reinforcement learning optimizes a reward signal", ContentType: "html", ProcessedAt: now.AddDate(0, 0, 20)},
	}
}

func TestIndex_SearchAndFetch_Basic(t *testing.T) {
	// Given: an index with three chunks
	idx := mustIndex(t)
	require.NoError(t, idx.Upsert(context.Background(), sampleChunks(), nil))

	// When: searching for a term present in one chunk
	hits, err := idx.Search(context.Background(), "supervised labeled", nil, 10)

	// Then: the matching chunk is returned with a positive score
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c1", hits[0].ChunkID)

	// And: its metadata can be fetched by id
	chunks, err := idx.FetchChunks(context.Background(), []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, "d1", chunks["c1"].DocumentID)
}

func TestIndex_Search_EmptyQuery_ReturnsEmpty(t *testing.T) {
	idx := mustIndex(t)
	require.NoError(t, idx.Upsert(context.Background(), sampleChunks(), nil))

	hits, err := idx.Search(context.Background(), "   ", nil, 10)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Search_RestrictedToEligible_ExcludesOthers(t *testing.T) {
	// Given: all three chunks contain "learning"
	idx := mustIndex(t)
	require.NoError(t, idx.Upsert(context.Background(), sampleChunks(), nil))
	eligible := map[string]struct{}{"c3": {}}

	// When: searching restricted to a single eligible id
	hits, err := idx.Search(context.Background(), "learning", eligible, 10)

	// Then: only the eligible chunk is returned
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c3", hits[0].ChunkID)
}

func TestIndex_EligibleIDs_EmptyFilter_ReturnsNil(t *testing.T) {
	idx := mustIndex(t)
	require.NoError(t, idx.Upsert(context.Background(), sampleChunks(), nil))

	ids, err := idx.EligibleIDs(context.Background(), model.CompiledFilter{})

	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestIndex_EligibleIDs_ContentTypeFilter_NarrowsResults(t *testing.T) {
	idx := mustIndex(t)
	require.NoError(t, idx.Upsert(context.Background(), sampleChunks(), nil))

	ids, err := idx.EligibleIDs(context.Background(), model.CompiledFilter{
		ContentTypes: []string{"pdf"},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"c2": {}}, ids)
}

func TestIndex_EligibleIDs_DateRange_NarrowsResults(t *testing.T) {
	idx := mustIndex(t)
	require.NoError(t, idx.Upsert(context.Background(), sampleChunks(), nil))
	from := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC).Unix()

	ids, err := idx.EligibleIDs(context.Background(), model.CompiledFilter{DateFrom: &from})

	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"c2": {}, "c3": {}}, ids)
}

func TestIndex_EligibleIDs_TaxonomyScope_IntersectsClassification(t *testing.T) {
	// Given: d1 classified under "AI/ML" at confidence 0.9, d2 under "AI/ML" at 0.3
	idx := mustIndex(t)
	classifications := map[string][]model.NodeConfidence{
		"d1": {{NodeID: "AI/ML", Confidence: 0.9}},
		"d2": {{NodeID: "AI/ML", Confidence: 0.3}},
	}
	require.NoError(t, idx.Upsert(context.Background(), sampleChunks(), classifications))

	// When: filtering to that node at the default confidence floor
	ids, err := idx.EligibleIDs(context.Background(), model.CompiledFilter{
		NodeSet:       map[string]struct{}{"AI/ML": {}},
		MinConfidence: model.DefaultMinConfidence,
	})

	// Then: only the chunk meeting the confidence floor is eligible
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"c1": {}}, ids)
}

func TestIndex_Close_RejectsFurtherOperations(t *testing.T) {
	idx, err := New("")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = idx.Search(context.Background(), "anything", nil, 10)
	assert.Error(t, err)
}
