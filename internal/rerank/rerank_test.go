package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCrossEncoder struct {
	available bool
	scores    []float64
	err       error
}

func (f *fakeCrossEncoder) Available(ctx context.Context) bool { return f.available }

func (f *fakeCrossEncoder) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func candidates() []CandidateText {
	return []CandidateText{
		{FusedCandidate: model.FusedCandidate{ChunkID: "a", Fused: 0.5}, Text: "supervised learning uses labeled data", SourceURL: "src1", TaxonomyPath: []string{"AI"}},
		{FusedCandidate: model.FusedCandidate{ChunkID: "b", Fused: 0.5}, Text: "a completely unrelated cooking recipe", SourceURL: "src2", TaxonomyPath: []string{"Food"}},
	}
}

func TestRerank_NoCrossEncoder_UsesHeuristicPath(t *testing.T) {
	r := New(nil)

	out, path := r.Rerank(context.Background(), "supervised learning", candidates())

	assert.Equal(t, PathHeuristic, path)
	require.Len(t, out, 2)
	// Equal fused inputs; "a" shares query terms with higher overlap, so it
	// scores higher on quality and sorts first.
	assert.Equal(t, "a", out[0].ChunkID)
}

func TestRerank_CrossEncoderAvailable_UsesCrossEncoderPath(t *testing.T) {
	ce := &fakeCrossEncoder{available: true, scores: []float64{0.2, 0.9}}
	r := New(ce)

	out, path := r.Rerank(context.Background(), "query", candidates())

	assert.Equal(t, PathCrossEncoder, path)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ChunkID)
}

func TestRerank_CrossEncoderFails_FallsBackToHeuristic(t *testing.T) {
	ce := &fakeCrossEncoder{available: true, err: errors.New("model unavailable")}
	r := New(ce)

	out, path := r.Rerank(context.Background(), "supervised learning", candidates())

	assert.Equal(t, PathHeuristic, path)
	require.Len(t, out, 2)
}

func TestRerank_CrossEncoderUnavailable_FallsBackToHeuristic(t *testing.T) {
	ce := &fakeCrossEncoder{available: false}
	r := New(ce)

	_, path := r.Rerank(context.Background(), "supervised learning", candidates())

	assert.Equal(t, PathHeuristic, path)
}

func TestLengthPenalty_PiecewiseBoundaries(t *testing.T) {
	assert.Equal(t, 0.7, lengthPenalty(10))
	assert.Equal(t, 0.9, lengthPenalty(75))
	assert.Equal(t, 1.0, lengthPenalty(200))
	assert.Equal(t, 0.95, lengthPenalty(750))
	assert.Equal(t, 0.8, lengthPenalty(2000))
}

func TestRerankHeuristic_ClampsToUnitInterval(t *testing.T) {
	r := New(nil)
	cands := []CandidateText{
		{FusedCandidate: model.FusedCandidate{ChunkID: "a", Fused: 1.0}, Text: "x", SourceURL: "s", TaxonomyPath: []string{"p"}},
	}

	out := r.rerankHeuristic("x", cands)

	require.Len(t, out, 1)
	assert.LessOrEqual(t, out[0].Rerank, 1.0)
	assert.GreaterOrEqual(t, out[0].Rerank, 0.0)
}
