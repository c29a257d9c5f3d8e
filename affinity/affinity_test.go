package affinity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerplexityBasedMatrixProperties(t *testing.T) {
	data := randomVectors(t, 100, 4, 1)

	model, err := NewPerplexityBased(data, 10, DefaultOptions())
	require.NoError(t, err)

	P := model.P()
	assert.Equal(t, 100, P.Rows())
	assert.Equal(t, 100, P.Cols())
	assert.InDelta(t, 1.0, P.Sum(), 1e-9)

	// min(n-1, round(3*perplexity)) neighbors per point.
	assert.Equal(t, 30, model.Neighbors().K())
	assert.Equal(t, 10.0, model.Perplexity())

	for i := 0; i < P.Rows(); i++ {
		for j := i + 1; j < P.Cols(); j++ {
			assert.InDelta(t, P.At(i, j), P.At(j, i), 1e-15)
		}
	}
}

func TestPerplexityBasedNeighborCount(t *testing.T) {
	data := randomVectors(t, 100, 4, 2)

	model, err := NewPerplexityBased(data, 30, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 90, model.Neighbors().K())

	// 40 is infeasible for n=100 and clamps to (n-1)/3 = 33.
	clamped, err := NewPerplexityBased(data, 40, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 33.0, clamped.Perplexity())
	assert.Equal(t, 99, clamped.Neighbors().K())
}

func TestPerplexityBasedValidation(t *testing.T) {
	data := randomVectors(t, 50, 4, 3)

	_, err := NewPerplexityBased(data, 0, DefaultOptions())
	assert.ErrorIs(t, err, ErrPerplexityNonPositive)

	_, err = NewPerplexityBased(data, -5, DefaultOptions())
	assert.ErrorIs(t, err, ErrPerplexityNonPositive)

	opts := DefaultOptions()
	opts.Metric = "mahalanobis"
	_, err = NewPerplexityBased(data, 10, opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Method = "annoy"
	_, err = NewPerplexityBased(data, 10, opts)
	assert.Error(t, err)
}

func TestSetPerplexityReusesNeighbors(t *testing.T) {
	data := randomVectors(t, 100, 4, 4)
	counting := &countingIndex{inner: exactIndex(t)}
	opts := DefaultOptions()
	opts.Index = counting

	model, err := NewPerplexityBased(data, 10, opts)
	require.NoError(t, err)
	require.Equal(t, 1, counting.builds)
	require.Equal(t, 1, counting.trainQueries)

	neighbors := model.Neighbors()
	before := model.P()

	require.NoError(t, model.SetPerplexity(5))
	assert.Equal(t, 5.0, model.Perplexity())
	assert.NotSame(t, before, model.P())

	// Lowering reuses the cached neighbor rows: no new query of any
	// kind and the cached graph is untouched.
	assert.Equal(t, 1, counting.trainQueries)
	assert.Equal(t, 0, counting.queries)
	assert.Same(t, neighbors, model.Neighbors())

	// Setting the current value is a no-op.
	current := model.P()
	require.NoError(t, model.SetPerplexity(5))
	assert.Same(t, current, model.P())
}

func TestSetPerplexityTooLarge(t *testing.T) {
	data := randomVectors(t, 100, 4, 5)

	model, err := NewPerplexityBased(data, 10, DefaultOptions())
	require.NoError(t, err)
	before := model.P()

	// 20 needs 60 neighbors but only 30 are cached.
	err = model.SetPerplexity(20)
	assert.ErrorIs(t, err, ErrPerplexityTooLarge)
	assert.Equal(t, 10.0, model.Perplexity())
	assert.Same(t, before, model.P())

	err = model.SetPerplexity(-1)
	assert.ErrorIs(t, err, ErrPerplexityNonPositive)
	assert.Same(t, before, model.P())
}

func TestToNewRectangular(t *testing.T) {
	data := randomVectors(t, 100, 4, 6)
	newData := randomVectors(t, 7, 4, 7)

	model, err := NewPerplexityBased(data, 10, DefaultOptions())
	require.NoError(t, err)

	P, graph, err := model.ToNew(newData)
	require.NoError(t, err)
	assert.Equal(t, 7, P.Rows())
	assert.Equal(t, 100, P.Cols())
	assert.InDelta(t, 1.0, P.Sum(), 1e-9)
	assert.Equal(t, 7, graph.Len())
	assert.Equal(t, 30, graph.K())

	for _, v := range P.Data {
		assert.GreaterOrEqual(t, v, 0.0)
	}

	_, _, err = model.ToNewPerplexity(newData, 0)
	assert.ErrorIs(t, err, ErrPerplexityNonPositive)
}

func TestToNewRoundTrip(t *testing.T) {
	data := randomVectors(t, 80, 3, 8)
	replay := &replayIndex{inner: exactIndex(t)}
	opts := DefaultOptions()
	opts.Index = replay
	opts.Symmetrize = false

	model, err := NewPerplexityBased(data, 8, opts)
	require.NoError(t, err)

	// Querying the training data through the replayed graph must
	// reproduce the training matrix exactly: same neighbor rows, same
	// calibration, same normalization.
	P, _, err := model.ToNew(data)
	require.NoError(t, err)

	want := model.P().Dense()
	got := P.Dense()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDeltaSlice(t, want[i], got[i], 1e-12)
	}
}

func TestFixedSigma(t *testing.T) {
	data := randomVectors(t, 50, 4, 9)
	opts := DefaultOptions()
	opts.Symmetrize = false

	model, err := NewFixedSigma(data, 1.0, 10, opts)
	require.NoError(t, err)
	assert.Equal(t, 1.0, model.Sigma())
	assert.Equal(t, 10, model.K())

	P := model.P()
	assert.Equal(t, 50, P.Rows())
	assert.Equal(t, 50, P.Cols())
	assert.InDelta(t, 1.0, P.Sum(), 1e-9)
	for i := 0; i < P.Rows(); i++ {
		assert.Equal(t, 10, P.RowNnz(i))
		assert.Equal(t, i*10, P.Indptr[i])
	}
}

func TestFixedSigmaSymmetrized(t *testing.T) {
	data := randomVectors(t, 50, 4, 10)

	model, err := NewFixedSigma(data, 0.5, 10, DefaultOptions())
	require.NoError(t, err)

	P := model.P()
	assert.InDelta(t, 1.0, P.Sum(), 1e-9)
	for i := 0; i < P.Rows(); i++ {
		for j := i + 1; j < P.Cols(); j++ {
			assert.InDelta(t, P.At(i, j), P.At(j, i), 1e-15)
		}
	}
}

func TestFixedSigmaToNew(t *testing.T) {
	data := randomVectors(t, 50, 4, 11)
	newData := randomVectors(t, 6, 4, 12)

	model, err := NewFixedSigma(data, 1.0, 10, DefaultOptions())
	require.NoError(t, err)

	// Non-positive overrides fall back to the stored values.
	P, graph, err := model.ToNewSigma(newData, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, P.Rows())
	assert.Equal(t, 50, P.Cols())
	assert.InDelta(t, 1.0, P.Sum(), 1e-9)
	assert.Equal(t, 10, graph.K())

	P, graph, err = model.ToNewSigma(newData, 2.0, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, graph.K())
	assert.InDelta(t, 1.0, P.Sum(), 1e-9)

	_, _, err = model.ToNewSigma(newData, 1.0, 50)
	assert.ErrorIs(t, err, ErrTooManyNeighbors)
}

func TestFixedSigmaValidation(t *testing.T) {
	data := randomVectors(t, 20, 4, 13)

	_, err := NewFixedSigma(data, 1.0, 20, DefaultOptions())
	assert.ErrorIs(t, err, ErrTooManyNeighbors)

	_, err = NewFixedSigma(data, 1.0, 25, DefaultOptions())
	assert.ErrorIs(t, err, ErrTooManyNeighbors)
}
