package affinity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toddrme2178/fastTSNE/knn"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
)

func randomVectors(t *testing.T, n, dims int, seed int64) []gomath.Vector {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]gomath.Vector, n)
	for i := range data {
		data[i] = make(gomath.Vector, dims)
		for j := range data[i] {
			data[i][j] = rng.NormFloat64()
		}
	}
	return data
}

func exactIndex(t *testing.T) knn.Index {
	t.Helper()
	index, err := knn.NewIndex("exact", knn.Config{Metric: "euclidean", NJobs: 1})
	require.NoError(t, err)
	return index
}

// countingIndex wraps an index and counts how often each operation is
// invoked, so tests can assert that cached neighbors are reused.
type countingIndex struct {
	inner knn.Index

	builds       int
	trainQueries int
	queries      int
}

func (c *countingIndex) Build(data []gomath.Vector) error {
	c.builds++
	return c.inner.Build(data)
}

func (c *countingIndex) QueryTrain(data []gomath.Vector, k int) (*knn.Graph, error) {
	c.trainQueries++
	return c.inner.QueryTrain(data, k)
}

func (c *countingIndex) Query(newData []gomath.Vector, k int) (*knn.Graph, error) {
	c.queries++
	return c.inner.Query(newData, k)
}

// replayIndex answers Query with the graph recorded during QueryTrain.
// Feeding the training data back through ToNew then reproduces the
// training-time neighbor rows exactly, self-matches excluded, which
// makes round-trip comparisons deterministic.
type replayIndex struct {
	inner knn.Index
	train *knn.Graph
}

func (r *replayIndex) Build(data []gomath.Vector) error {
	return r.inner.Build(data)
}

func (r *replayIndex) QueryTrain(data []gomath.Vector, k int) (*knn.Graph, error) {
	g, err := r.inner.QueryTrain(data, k)
	r.train = g
	return g, err
}

func (r *replayIndex) Query(newData []gomath.Vector, k int) (*knn.Graph, error) {
	return r.train.Truncate(k), nil
}
