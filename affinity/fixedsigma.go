package affinity

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/toddrme2178/fastTSNE/knn"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
	"github.com/toddrme2178/fastTSNE/pkg/parallel"
	"github.com/toddrme2178/fastTSNE/pkg/sparse"
)

// FixedSigma skips entropy calibration entirely: conditional
// probabilities are a plain Gaussian kernel at a caller-supplied
// bandwidth, row-normalized. The neighbor count is a direct parameter.
type FixedSigma struct {
	nSamples int
	sigma    float64
	k        int
	workers  int

	index  knn.Index
	matrix *sparse.CSR
}

// NewFixedSigma builds the index, fetches k neighbors per point and
// evaluates the kernel at bandwidth sigma. k must be strictly smaller
// than the sample count.
func NewFixedSigma(data []gomath.Vector, sigma float64, k int, opts Options) (*FixedSigma, error) {
	nSamples := len(data)
	if k >= nSamples {
		return nil, ErrTooManyNeighbors
	}

	index, err := buildIndex(data, opts)
	if err != nil {
		return nil, err
	}

	workers := resolveWorkers(opts)
	graph, err := index.QueryTrain(data, k)
	if err != nil {
		return nil, err
	}

	rows := gaussianRows(graph, sigma, workers)
	P := sparse.FromRows(rows, graph.Indices, nSamples)
	if opts.Symmetrize {
		if P, err = P.Symmetrize(); err != nil {
			return nil, err
		}
	}
	P.Scale(1 / P.Sum())

	return &FixedSigma{
		nSamples: nSamples,
		sigma:    sigma,
		k:        k,
		workers:  workers,
		index:    index,
		matrix:   P,
	}, nil
}

// P returns the affinity matrix.
func (a *FixedSigma) P() *sparse.CSR { return a.matrix }

// Sigma returns the fixed bandwidth.
func (a *FixedSigma) Sigma() float64 { return a.sigma }

// K returns the neighbor count.
func (a *FixedSigma) K() int { return a.k }

// ToNew extends the affinities to unseen points with the stored
// bandwidth and neighbor count.
func (a *FixedSigma) ToNew(data []gomath.Vector) (*sparse.CSR, *knn.Graph, error) {
	return a.ToNewSigma(data, a.sigma, a.k)
}

// ToNewSigma extends the affinities to unseen points with an override
// bandwidth and neighbor count. Pass sigma <= 0 or k <= 0 to keep the
// stored values.
func (a *FixedSigma) ToNewSigma(data []gomath.Vector, sigma float64, k int) (*sparse.CSR, *knn.Graph, error) {
	if sigma <= 0 {
		sigma = a.sigma
	}
	if k <= 0 {
		k = a.k
	} else if k >= a.nSamples {
		return nil, nil, ErrTooManyNeighbors
	}

	graph, err := a.index.Query(data, k)
	if err != nil {
		return nil, nil, err
	}

	rows := gaussianRows(graph, sigma, a.workers)
	P := sparse.FromRows(rows, graph.Indices, a.nSamples)
	P.Scale(1 / P.Sum())
	return P, graph, nil
}

// gaussianRows evaluates exp(-d^2 / (2 sigma^2)) over every distance
// row and normalizes each row to sum to 1.
func gaussianRows(graph *knn.Graph, sigma float64, workers int) [][]float64 {
	denom := 2 * sigma * sigma
	rows := make([][]float64, graph.Len())
	parallel.RowLoop(graph.Len(), workers, func(i int) {
		row := make([]float64, len(graph.Distances[i]))
		for j, d := range graph.Distances[i] {
			row[j] = math.Exp(-d * d / denom)
		}
		if sum := floats.Sum(row); sum > 0 {
			floats.Scale(1/sum, row)
		}
		rows[i] = row
	})
	return rows
}
