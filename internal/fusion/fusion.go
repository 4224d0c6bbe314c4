// Package fusion implements the Fusion Engine (C7): combining a
// lexical and a dense candidate list into one ranked list via
// per-side normalization (C1) and adaptive weighting driven by query
// features (C6). The deterministic descending sort with an ascending
// chunk-id tie-break follows the teacher's fusion package's ordering
// discipline; the weighting formula itself is this system's own.
package fusion

import (
	"sort"

	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/dtrag/retrieval-core/internal/normalize"
	"github.com/dtrag/retrieval-core/internal/query"
)

// Config holds the base weighting the orchestrator was constructed
// with (wired from internal/config's SearchConfig), so a deployment can
// tune how hard adaptive fusion leans toward lexical or dense without
// recompiling.
type Config struct {
	BaseLexical float64
	BaseDense   float64
	Shift       float64
}

// DefaultConfig returns the spec's documented weighting defaults: an
// even 0.5/0.5 split, shifted by 0.2 for short-exact or high-complexity
// queries.
func DefaultConfig() Config {
	return Config{BaseLexical: 0.5, BaseDense: 0.5, Shift: 0.2}
}

// Weights holds the lexical/dense blend applied to a fusion pass.
type Weights struct {
	Lexical, Dense float64
}

// clamp keeps both weights non-negative and renormalizes them to sum to
// 1.0, so a configured Shift larger than the base weight can't drive a
// side negative (§4.7 step 3: "weights always sum to 1.0").
func (w Weights) clamp() Weights {
	if w.Lexical < 0 {
		w.Lexical = 0
	}
	if w.Dense < 0 {
		w.Dense = 0
	}
	sum := w.Lexical + w.Dense
	if sum == 0 {
		return Weights{Lexical: 0.5, Dense: 0.5}
	}
	return Weights{Lexical: w.Lexical / sum, Dense: w.Dense / sum}
}

// AdaptiveWeights derives w_lex/w_dense from query features (§4.7 step 3).
// Defaults to cfg's base split; shifts cfg.Shift toward lexical for
// short exact queries, or toward dense for high-complexity queries. With
// DefaultConfig this yields 0.7/0.3 for short exact queries and 0.3/0.7
// for high-complexity ones.
func AdaptiveWeights(features query.Features, cfg Config) Weights {
	w := Weights{Lexical: cfg.BaseLexical, Dense: cfg.BaseDense}
	switch {
	case features.IsShortExact():
		w.Lexical += cfg.Shift
		w.Dense -= cfg.Shift
	case features.IsHighComplexity():
		w.Dense += cfg.Shift
		w.Lexical -= cfg.Shift
	}
	return w.clamp()
}

// Fuse combines lexical and dense candidate lists into one ranked list.
// policy selects the C1 normalization applied independently to each
// side. nFuse caps the returned list length (§4.7 step 5: default
// max(N_lex, N_vec)).
//
// When one side is unavailable (nil, signaling that stage failed or was
// skipped, as opposed to an empty-but-successful result), weights
// collapse to (0,1) or (1,0) per the edge case in §4.7, and the
// surviving side's own normalized scores pass straight through.
func Fuse(lexical, dense []model.ScoredCandidate, features query.Features, policy normalize.Policy, nFuse int, cfg Config) ([]model.FusedCandidate, Weights) {
	weights := AdaptiveWeights(features, cfg)
	lexicalFailed := lexical == nil
	denseFailed := dense == nil
	switch {
	case lexicalFailed && denseFailed:
		return []model.FusedCandidate{}, Weights{}
	case lexicalFailed:
		weights = Weights{Lexical: 0, Dense: 1}
	case denseFailed:
		weights = Weights{Lexical: 1, Dense: 0}
	}

	lexIDs, lexScores := splitCandidates(lexical)
	denseIDs, denseScores := splitCandidates(dense)
	normLex := normalize.Normalize(lexScores, policy)
	normDense := normalize.Normalize(denseScores, policy)

	lexByID := make(map[string]float64, len(lexIDs))
	for i, id := range lexIDs {
		lexByID[id] = normLex[i]
	}
	denseByID := make(map[string]float64, len(denseIDs))
	for i, id := range denseIDs {
		denseByID[id] = normDense[i]
	}

	union := make(map[string]struct{}, len(lexByID)+len(denseByID))
	for id := range lexByID {
		union[id] = struct{}{}
	}
	for id := range denseByID {
		union[id] = struct{}{}
	}

	out := make([]model.FusedCandidate, 0, len(union))
	for id := range union {
		l, inLex := lexByID[id]
		d, inDense := denseByID[id]
		fc := model.FusedCandidate{
			ChunkID:     id,
			Lexical:     l,
			Dense:       d,
			Fused:       weights.Lexical*l + weights.Dense*d,
			InBothSides: inLex && inDense,
		}
		out = append(out, fc)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Fused != out[j].Fused {
			return out[i].Fused > out[j].Fused
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	if nFuse > 0 && len(out) > nFuse {
		out = out[:nFuse]
	}
	return out, weights
}

func splitCandidates(cands []model.ScoredCandidate) ([]string, []float64) {
	ids := make([]string, len(cands))
	scores := make([]float64, len(cands))
	for i, c := range cands {
		ids[i] = c.ChunkID
		scores[i] = c.Score
	}
	return ids, scores
}
