// Package rerank implements the Reranker (C8): a cross-encoder path
// when one is available, falling back to a heuristic scorer that never
// fails the request. The path-selection and WARN-on-fallback discipline
// follows the teacher's reranker package; the heuristic formula itself
// implements this system's own scoring design.
package rerank

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	dtragerrors "github.com/dtrag/retrieval-core/internal/errors"
	"github.com/dtrag/retrieval-core/internal/logging"
	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/dtrag/retrieval-core/internal/normalize"
)

// crossEncoderRetry bounds retries of a networked cross-encoder call to
// a few tens of milliseconds, since the whole rerank stage shares the
// orchestrator's RerankTimeout deadline.
var crossEncoderRetry = dtragerrors.RetryConfig{
	MaxRetries:   2,
	InitialDelay: 20 * time.Millisecond,
	MaxDelay:     100 * time.Millisecond,
	Multiplier:   2.0,
	Jitter:       true,
}

// PathCrossEncoder and PathHeuristic record which path produced a
// reranked list, surfaced on SearchMetrics.RerankPath.
const (
	PathCrossEncoder = "cross-encoder"
	PathHeuristic    = "heuristic"
)

// Reranker reranks fused candidates given the original query text.
type Reranker struct {
	crossEncoder model.CrossEncoder
}

// New constructs a Reranker. crossEncoder may be nil, in which case the
// heuristic path always runs.
func New(crossEncoder model.CrossEncoder) *Reranker {
	return &Reranker{crossEncoder: crossEncoder}
}

// CandidateText pairs a fused candidate with the resolved chunk text it
// needs for text-based reranking.
type CandidateText struct {
	model.FusedCandidate
	Text         string
	Title        string
	SourceURL    string
	TaxonomyPath []string
}

// Rerank runs the cross-encoder over candidates when available and
// healthy, otherwise the heuristic fallback (§4.8). Returns the
// reranked, score-descending slice and the path that ran.
func (r *Reranker) Rerank(ctx context.Context, queryText string, candidates []CandidateText) ([]model.FusedCandidate, string) {
	if r.crossEncoder != nil && r.crossEncoder.Available(ctx) {
		if out, err := r.rerankCrossEncoder(ctx, queryText, candidates); err == nil {
			return out, PathCrossEncoder
		} else {
			logging.ForStage(slog.Default(), logging.StageRerank).Warn(
				"cross-encoder rerank failed, falling back to heuristic", slog.String("error", err.Error()))
		}
	}
	return r.rerankHeuristic(queryText, candidates), PathHeuristic
}

func (r *Reranker) rerankCrossEncoder(ctx context.Context, queryText string, candidates []CandidateText) ([]model.FusedCandidate, error) {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	scores, err := dtragerrors.RetryWithResult(ctx, crossEncoderRetry, func(ctx context.Context) ([]float64, error) {
		return r.crossEncoder.Score(ctx, queryText, texts)
	})
	if err != nil {
		return nil, err
	}

	normalized := normalize.Normalize(scores, normalize.MinMax)
	out := make([]model.FusedCandidate, len(candidates))
	for i, c := range candidates {
		fc := c.FusedCandidate
		fc.Rerank = normalized[i]
		out[i] = fc
	}
	sortByRerank(out)
	return out, nil
}

// rerankHeuristic implements §4.8's fallback formula.
func (r *Reranker) rerankHeuristic(queryText string, candidates []CandidateText) []model.FusedCandidate {
	qTerms := termSet(queryText)
	diversityBonus := diversityBonus(candidates)

	out := make([]model.FusedCandidate, len(candidates))
	for i, c := range candidates {
		overlap := termOverlap(qTerms, c.Text)
		lengthPenalty := lengthPenalty(len(c.Text))
		quality := 1.0 + 0.2*overlap + 0.1*lengthPenalty + 0.1*diversityBonus

		fc := c.FusedCandidate
		fc.Rerank = clamp01(fc.Fused * quality)
		out[i] = fc
	}
	sortByRerank(out)
	return out
}

func sortByRerank(out []model.FusedCandidate) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rerank != out[j].Rerank {
			return out[i].Rerank > out[j].Rerank
		}
		if out[i].Fused != out[j].Fused {
			return out[i].Fused > out[j].Fused
		}
		return out[i].ChunkID < out[j].ChunkID
	})
}

func termSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func termOverlap(qTerms map[string]struct{}, text string) float64 {
	if len(qTerms) == 0 {
		return 0
	}
	textTerms := termSet(text)
	overlap := 0
	for t := range qTerms {
		if _, ok := textTerms[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / math.Max(1, float64(len(qTerms)))
}

func lengthPenalty(chars int) float64 {
	switch {
	case chars < 50:
		return 0.7
	case chars <= 100:
		return 0.9
	case chars <= 500:
		return 1.0
	case chars <= 1000:
		return 0.95
	default:
		return 0.8
	}
}

// diversityBonus reflects source and taxonomy-prefix variety across the
// candidate set being reranked, not any single candidate.
func diversityBonus(candidates []CandidateText) float64 {
	sources := make(map[string]struct{})
	prefixes := make(map[string]struct{})
	for _, c := range candidates {
		if c.SourceURL != "" {
			sources[c.SourceURL] = struct{}{}
		}
		if len(c.TaxonomyPath) > 0 {
			prefixes[c.TaxonomyPath[0]] = struct{}{}
		}
	}
	return math.Min(1.0, float64(len(sources)+len(prefixes))/10.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
