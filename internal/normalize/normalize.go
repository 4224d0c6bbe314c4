// Package normalize implements the Score Normalizer (C1): a pure mapping
// from a list of raw scores to [0,1] that preserves index alignment, so
// callers can zip normalized scores back against the candidate ids they
// came from.
package normalize

import "math"

// Policy selects a normalization strategy.
type Policy string

const (
	MinMax        Policy = "min-max"
	ZScore        Policy = "z-score"
	ReciprocalRank Policy = "reciprocal-rank"
)

// ReciprocalRankConstant is the smoothing constant k used by the
// reciprocal-rank policy, matching the industry-standard RRF default.
const ReciprocalRankConstant = 60

// Normalize maps scores into [0,1] according to policy. Empty input
// returns empty output. Any internal arithmetic failure (NaN/Inf
// anywhere in the input) returns the original slice unchanged: this is
// the one place the core tolerates a non-normalized signal downstream,
// and callers must treat the result as a soft signal in that case.
func Normalize(scores []float64, policy Policy) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}
	if hasNonFinite(scores) {
		return scores
	}

	switch policy {
	case ZScore:
		return zScore(scores)
	case ReciprocalRank:
		return reciprocalRank(scores)
	case MinMax, "":
		return minMax(scores)
	default:
		return minMax(scores)
	}
}

func hasNonFinite(scores []float64) bool {
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return true
		}
	}
	return false
}

func minMax(scores []float64) []float64 {
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make([]float64, len(scores))
	if hi <= lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	span := hi - lo
	for i, s := range scores {
		out[i] = (s - lo) / span
	}
	return out
}

// zScore standardizes scores then squashes them into [0,1] via the
// cumulative standard-normal distribution (Φ), a monotone mapping that
// preserves ordering — see spec.md §9's Open Question on this policy.
func zScore(scores []float64) []float64 {
	n := float64(len(scores))
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / n

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= n
	sigma := math.Sqrt(variance)

	out := make([]float64, len(scores))
	if sigma == 0 {
		return out // all 0.0, as specified
	}
	for i, s := range scores {
		z := (s - mean) / sigma
		out[i] = standardNormalCDF(z)
	}
	return out
}

// standardNormalCDF is Φ(z), the cumulative distribution function of the
// standard normal, computed from the error function.
func standardNormalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// reciprocalRank sorts descending, assigns 1/(rank+k), then min-max
// scales the result back to [0,1] — the ranks are computed once and the
// returned slice stays aligned to the original input order.
func reciprocalRank(scores []float64) []float64 {
	type indexed struct {
		idx   int
		score float64
	}
	ranked := make([]indexed, len(scores))
	for i, s := range scores {
		ranked[i] = indexed{idx: i, score: s}
	}
	// Stable descending sort by score.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	rrScores := make([]float64, len(scores))
	for rank, r := range ranked {
		rrScores[r.idx] = 1.0 / float64(rank+1+ReciprocalRankConstant)
	}
	return minMax(rrScores)
}
