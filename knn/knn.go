// Package knn provides the nearest-neighbor indexes consumed by the
// affinity models: an exact ball tree and an approximate
// nearest-neighbor-descent graph. Both are built once over reference
// data and afterwards serve read-only queries for the reference points
// themselves and for unseen points.
package knn

import (
	"errors"
	"fmt"

	"github.com/toddrme2178/fastTSNE/pkg/distance"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
)

var (
	ErrNotBuilt  = errors.New("knn: index has not been built")
	ErrEmptyData = errors.New("knn: data must contain at least two points")
	ErrBadNeighK = errors.New("knn: k must be at least 1 and smaller than the number of reference points")
	ErrDimension = errors.New("knn: query dimensionality does not match the reference data")
	ErrRebuilt   = errors.New("knn: index is already built")
	ErrBadMethod = errors.New("knn: unrecognized nearest neighbor algorithm")
)

// Graph holds aligned neighbor-index and distance rows: row i lists the
// k nearest reference neighbors of point i, closest first.
type Graph struct {
	Indices   [][]int32
	Distances [][]float64
}

// Len returns the number of query rows.
func (g *Graph) Len() int { return len(g.Indices) }

// K returns the neighbor count per row.
func (g *Graph) K() int {
	if len(g.Indices) == 0 {
		return 0
	}
	return len(g.Indices[0])
}

// Truncate returns a column-truncated view sharing the backing arrays.
// Used when lowering the perplexity: fewer neighbors are needed and the
// originals must stay untouched.
func (g *Graph) Truncate(k int) *Graph {
	if k >= g.K() {
		return g
	}
	view := &Graph{
		Indices:   make([][]int32, len(g.Indices)),
		Distances: make([][]float64, len(g.Distances)),
	}
	for i := range g.Indices {
		view.Indices[i] = g.Indices[i][:k]
		view.Distances[i] = g.Distances[i][:k]
	}
	return view
}

func newGraph(rows, k int) *Graph {
	g := &Graph{
		Indices:   make([][]int32, rows),
		Distances: make([][]float64, rows),
	}
	for i := 0; i < rows; i++ {
		g.Indices[i] = make([]int32, k)
		g.Distances[i] = make([]float64, k)
	}
	return g
}

// Index is the capability set the affinity models rely on. Build
// prepares the index over the reference data; QueryTrain returns the k
// nearest neighbors of every reference point excluding the point
// itself; Query resolves unseen points against the built reference set.
type Index interface {
	Build(data []gomath.Vector) error
	QueryTrain(data []gomath.Vector, k int) (*Graph, error)
	Query(newData []gomath.Vector, k int) (*Graph, error)
}

// Config carries the options shared by the builtin index methods.
type Config struct {
	Metric       string
	MetricParams distance.Params
	// NJobs follows the scikit-learn convention (-1 all cores, -2 all
	// but one).
	NJobs int
	// RandomState seeds the approximate method. Zero keeps the global
	// default behavior of a fixed seed so runs stay reproducible.
	RandomState int64
}

// NewIndex resolves a method name against the builtin algorithms. The
// metric name is validated here, before any build work happens.
func NewIndex(method string, cfg Config) (Index, error) {
	space, err := distance.FromName(cfg.Metric, cfg.MetricParams)
	if err != nil {
		return nil, err
	}
	switch method {
	case "exact":
		return newBallTree(space, cfg), nil
	case "approx":
		return newNNDescent(space, cfg), nil
	default:
		return nil, fmt.Errorf("%w `%s`, choose `exact`, `approx` or pass a prebuilt index", ErrBadMethod, method)
	}
}

func checkBuildInput(data []gomath.Vector) (dims int, err error) {
	if len(data) < 2 {
		return 0, ErrEmptyData
	}
	dims = len(data[0])
	for _, row := range data {
		if len(row) != dims {
			return 0, fmt.Errorf("knn: ragged data, row width %d != %d", len(row), dims)
		}
	}
	return dims, nil
}
