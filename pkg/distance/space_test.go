package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toddrme2178/fastTSNE/pkg/gomath"
)

func TestMetricValues(t *testing.T) {
	a := gomath.Vector{0, 0}
	b := gomath.Vector{3, 4}

	assert.InDelta(t, 5.0, Euclidean{}.Distance(a, b), 1e-12)
	assert.InDelta(t, 25.0, SqEuclidean{}.Distance(a, b), 1e-12)
	assert.InDelta(t, 7.0, Manhattan{}.Distance(a, b), 1e-12)
	assert.InDelta(t, 4.0, Chebyshev{}.Distance(a, b), 1e-12)

	// Minkowski collapses to the classic metrics at p=1 and p=2.
	assert.InDelta(t, 7.0, Minkowski{P: 1}.Distance(a, b), 1e-12)
	assert.InDelta(t, 5.0, Minkowski{P: 2}.Distance(a, b), 1e-12)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine{}.Distance(gomath.Vector{1, 0}, gomath.Vector{0, 1}), 1e-12)
	assert.InDelta(t, 0.0, Cosine{}.Distance(gomath.Vector{2, 2}, gomath.Vector{1, 1}), 1e-12)
	assert.InDelta(t, 2.0, Cosine{}.Distance(gomath.Vector{1, 0}, gomath.Vector{-1, 0}), 1e-12)
}

func TestFromName(t *testing.T) {
	space, err := FromName("euclidean", Params{})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, space.Distance(gomath.Vector{0, 0}, gomath.Vector{3, 4}), 1e-12)

	space, err = FromName("minkowski", Params{P: 3})
	require.NoError(t, err)
	m, ok := space.(Minkowski)
	require.True(t, ok)
	assert.Equal(t, 3.0, m.P)

	// Fractional exponents are not a metric and are clamped to 1.
	space, err = FromName("minkowski", Params{P: 0.5})
	require.NoError(t, err)
	m, ok = space.(Minkowski)
	require.True(t, ok)
	assert.Equal(t, 1.0, m.P)
}

func TestFromNameUnknown(t *testing.T) {
	_, err := FromName("hamming-ish", Params{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "hamming-ish")
}

func TestValidMetrics(t *testing.T) {
	names := ValidMetrics()
	assert.Contains(t, names, "euclidean")
	assert.Contains(t, names, "cosine")
	assert.True(t, IsValidMetric("manhattan"))
	assert.False(t, IsValidMetric("mahalanobis"))
}
