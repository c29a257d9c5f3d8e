package affinity

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/floats"
)

func TestCalibrateRowMatchesEntropy(t *testing.T) {
	rng := rand.New(rand.NewSource(30))
	distances := make([]float64, 40)
	for i := range distances {
		distances[i] = 0.1 + rng.Float64()*3
	}
	sort.Float64s(distances)

	for _, perplexity := range []float64{2, 5, 10} {
		out := make([]float64, len(distances))
		calibrateRow(distances, perplexity, out)

		assert.InDelta(t, 1.0, floats.Sum(out), 1e-9)

		entropy := 0.0
		for _, p := range out {
			if p > 0 {
				entropy -= p * math.Log(p)
			}
		}
		assert.InDelta(t, math.Log(perplexity), entropy, 1e-4)
	}
}

func TestCalibrateRowVanishedKernel(t *testing.T) {
	// Distances so large the kernel underflows to zero at any beta the
	// search can reach. The row must come out as zeros, never NaN.
	distances := []float64{1e200, 2e200, 3e200}
	out := make([]float64, len(distances))
	calibrateRow(distances, 5, out)

	for _, p := range out {
		assert.False(t, math.IsNaN(p))
		assert.Equal(t, 0.0, p)
	}
}

func TestCalibrateRowsParallel(t *testing.T) {
	data := randomVectors(t, 120, 3, 31)
	index := exactIndex(t)
	require.NoError(t, index.Build(data))
	graph, err := index.QueryTrain(data, 30)
	require.NoError(t, err)

	serial := calibrateRows(graph, 7, 1)
	parallelRows := calibrateRows(graph, 7, 4)
	require.Len(t, parallelRows, len(serial))
	for i := range serial {
		assert.InDeltaSlice(t, serial[i], parallelRows[i], 1e-15)
	}
}
