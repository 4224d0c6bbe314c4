package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EmptyInput_ReturnsEmptyOutput(t *testing.T) {
	// Given: no scores
	// When: normalizing under any policy
	// Then: the result is an empty (non-nil) slice
	for _, p := range []Policy{MinMax, ZScore, ReciprocalRank} {
		out := Normalize(nil, p)
		require.NotNil(t, out)
		assert.Empty(t, out)
	}
}

func TestNormalize_MinMax_MapsToUnitInterval(t *testing.T) {
	// Given: a spread of raw scores
	scores := []float64{10, 20, 30, 40}

	// When: min-max normalizing
	out := Normalize(scores, MinMax)

	// Then: endpoints map to 0 and 1, order is preserved
	require.Len(t, out, 4)
	assert.InDelta(t, 0.0, out[0], 1e-9)
	assert.InDelta(t, 1.0, out[3], 1e-9)
	assert.Less(t, out[0], out[1])
	assert.Less(t, out[1], out[2])
}

func TestNormalize_MinMax_AllIdentical_ReturnsAllOnes(t *testing.T) {
	// Given: all scores identical
	scores := []float64{5, 5, 5}

	// When: min-max normalizing
	out := Normalize(scores, MinMax)

	// Then: every value is 1.0, per spec.md §4.1
	for _, v := range out {
		assert.Equal(t, 1.0, v)
	}
}

func TestNormalize_ZScore_ZeroVariance_ReturnsAllZeros(t *testing.T) {
	// Given: constant scores (sigma == 0)
	scores := []float64{3, 3, 3}

	// When: z-score normalizing
	out := Normalize(scores, ZScore)

	// Then: every value is 0.0
	for _, v := range out {
		assert.Equal(t, 0.0, v)
	}
}

func TestNormalize_ZScore_StaysWithinUnitInterval(t *testing.T) {
	// Given: a varied distribution
	scores := []float64{1, 2, 3, 4, 100}

	// When: z-score normalizing
	out := Normalize(scores, ZScore)

	// Then: every value is squashed into [0,1] and order is preserved
	for i, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, v, out[i-1])
		}
	}
}

func TestNormalize_ReciprocalRank_DescendingInputStaysDescending(t *testing.T) {
	// Given: scores already in descending order
	scores := []float64{9, 5, 1}

	// When: reciprocal-rank normalizing
	out := Normalize(scores, ReciprocalRank)

	// Then: rank 0 (highest score) still scores highest after min-max scaling
	require.Len(t, out, 3)
	assert.InDelta(t, 1.0, out[0], 1e-9)
	assert.Greater(t, out[0], out[1])
	assert.Greater(t, out[1], out[2])
}

func TestNormalize_NonFiniteInput_FailsOpen(t *testing.T) {
	// Given: a score containing NaN
	scores := []float64{1, math.NaN(), 3}

	// When: normalizing
	out := Normalize(scores, MinMax)

	// Then: the original input is returned unchanged (fail-open per §4.1)
	require.Len(t, out, 3)
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 1.0, out[0])
}
