package fusion

import (
	"testing"

	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/dtrag/retrieval-core/internal/normalize"
	"github.com/dtrag/retrieval-core/internal/query"
	"github.com/stretchr/testify/assert"
)

func TestAdaptiveWeights_DefaultQuery_IsEvenSplit(t *testing.T) {
	w := AdaptiveWeights(query.Analyze("what is the capital of France"), DefaultConfig())
	assert.Equal(t, Weights{Lexical: 0.5, Dense: 0.5}, w)
}

func TestAdaptiveWeights_ShortExactQuery_ShiftsTowardLexical(t *testing.T) {
	w := AdaptiveWeights(query.Analyze(`"vector search"`), DefaultConfig())
	assert.Equal(t, 0.7, w.Lexical)
	assert.Equal(t, 0.3, w.Dense)
}

func TestAdaptiveWeights_HighComplexityQuery_ShiftsTowardDense(t *testing.T) {
	features := query.Features{TokenCount: 5, AvgTokenLength: 12, ComplexityScalar: 0.9}
	w := AdaptiveWeights(features, DefaultConfig())
	assert.Equal(t, 0.3, w.Lexical)
	assert.Equal(t, 0.7, w.Dense)
}

func TestFuse_BothSidesEmpty_ReturnsEmpty(t *testing.T) {
	out, _ := Fuse([]model.ScoredCandidate{}, []model.ScoredCandidate{}, query.Features{}, normalize.MinMax, 10, DefaultConfig())
	assert.Empty(t, out)
}

func TestFuse_BothSidesFailed_ReturnsEmpty(t *testing.T) {
	out, w := Fuse(nil, nil, query.Features{}, normalize.MinMax, 10, DefaultConfig())
	assert.Empty(t, out)
	assert.Equal(t, Weights{}, w)
}

func TestFuse_LexicalFailed_UsesDenseOnlyWeights(t *testing.T) {
	dense := []model.ScoredCandidate{{ChunkID: "a", Score: 0.9}, {ChunkID: "b", Score: 0.5}}

	out, w := Fuse(nil, dense, query.Features{}, normalize.MinMax, 10, DefaultConfig())

	assert.Equal(t, Weights{Lexical: 0, Dense: 1}, w)
	assert.Equal(t, "a", out[0].ChunkID)
}

func TestFuse_DenseFailed_UsesLexicalOnlyWeights(t *testing.T) {
	lexical := []model.ScoredCandidate{{ChunkID: "a", Score: 0.9}, {ChunkID: "b", Score: 0.5}}

	out, w := Fuse(lexical, nil, query.Features{}, normalize.MinMax, 10, DefaultConfig())

	assert.Equal(t, Weights{Lexical: 1, Dense: 0}, w)
	assert.Equal(t, "a", out[0].ChunkID)
}

func TestFuse_UnionOfBothSides_MissingSlotsTreatedAsZero(t *testing.T) {
	lexical := []model.ScoredCandidate{{ChunkID: "a", Score: 10}}
	dense := []model.ScoredCandidate{{ChunkID: "b", Score: 10}}

	out, _ := Fuse(lexical, dense, query.Features{}, normalize.MinMax, 10, DefaultConfig())

	assert.Len(t, out, 2)
	for _, fc := range out {
		assert.False(t, fc.InBothSides)
	}
}

func TestFuse_SortedDescendingByFused_WithChunkIDTieBreak(t *testing.T) {
	lexical := []model.ScoredCandidate{
		{ChunkID: "z", Score: 1.0},
		{ChunkID: "a", Score: 1.0},
		{ChunkID: "m", Score: 0.1},
	}

	out, _ := Fuse(lexical, []model.ScoredCandidate{}, query.Features{}, normalize.MinMax, 10, DefaultConfig())

	require := assert.New(t)
	require.Len(out, 3)
	// a and z tie on fused score (both normalized to 1.0); a sorts first.
	require.Equal("a", out[0].ChunkID)
	require.Equal("z", out[1].ChunkID)
	require.Equal("m", out[2].ChunkID)
}

func TestFuse_NFuseCap_TruncatesResult(t *testing.T) {
	lexical := []model.ScoredCandidate{
		{ChunkID: "a", Score: 3}, {ChunkID: "b", Score: 2}, {ChunkID: "c", Score: 1},
	}

	out, _ := Fuse(lexical, []model.ScoredCandidate{}, query.Features{}, normalize.MinMax, 2, DefaultConfig())

	assert.Len(t, out, 2)
}
