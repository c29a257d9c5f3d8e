// Package affinity computes the sparse input similarities consumed by
// a t-SNE embedding. Each model variant builds a nearest-neighbor
// index once, calibrates per-point Gaussian kernels over the neighbor
// distances and assembles the result into a globally normalized sparse
// matrix P. Models also extend the trained affinities to unseen points
// through the already-built index.
package affinity

import (
	"errors"
	"fmt"

	"github.com/toddrme2178/fastTSNE/knn"
	"github.com/toddrme2178/fastTSNE/pkg/distance"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
	"github.com/toddrme2178/fastTSNE/pkg/parallel"
	"github.com/toddrme2178/fastTSNE/pkg/sparse"
)

var (
	// ErrPerplexityNonPositive rejects perplexity values <= 0.
	ErrPerplexityNonPositive = errors.New("affinity: perplexity must be positive")

	// ErrPerplexityTooLarge rejects raising the perplexity past the
	// originally fetched neighbor count. Doing this correctly needs a
	// new, larger neighbor query, which is too expensive to run
	// implicitly; rebuild the model with a larger initial perplexity.
	ErrPerplexityTooLarge = errors.New("affinity: perplexity exceeds the cached neighbor set, rebuild with a larger initial perplexity")

	// ErrTooManyNeighbors rejects fixed-bandwidth neighbor counts that
	// reach the reference sample count.
	ErrTooManyNeighbors = errors.New("affinity: k cannot reach the number of reference samples")

	// ErrNoPerplexities rejects an empty multiscale perplexity list.
	ErrNoPerplexities = errors.New("affinity: at least one perplexity is required")
)

// Affinities is the capability set shared by all model variants:
// expose the training-time matrix P and extend it to new data. The
// out-of-sample matrix is never symmetrized (the new points are not
// part of the reference set) but is still globally normalized, and the
// raw neighbor graph is returned alongside it for downstream use.
type Affinities interface {
	P() *sparse.CSR
	ToNew(data []gomath.Vector) (*sparse.CSR, *knn.Graph, error)
}

// Options carries the construction parameters shared by every variant.
type Options struct {
	// Method selects a builtin neighbor search: "exact" (ball tree) or
	// "approx" (nearest neighbor descent). Ignored when Index is set.
	Method string

	// Index substitutes a caller-provided search backend. It must not
	// be built yet; the model builds it over the training data.
	Index knn.Index

	// Metric names the distance, validated against the allow-list in
	// pkg/distance before any index build.
	Metric       string
	MetricParams distance.Params

	// Symmetrize averages P with its transpose at training time.
	// Out-of-sample extension always skips it.
	Symmetrize bool

	// NJobs follows the scikit-learn convention: -1 all cores, -2 all
	// but one, and so on.
	NJobs int

	// RandomState seeds the approximate search method.
	RandomState int64
}

// DefaultOptions mirrors the defaults of the reference implementation:
// exact search over euclidean distances, symmetrized, single worker.
func DefaultOptions() Options {
	return Options{
		Method:     "exact",
		Metric:     "euclidean",
		Symmetrize: true,
		NJobs:      1,
	}
}

// buildIndex validates the configuration and builds the neighbor index
// over the training data. Validation failures happen before the build,
// so no partial state is ever produced.
func buildIndex(data []gomath.Vector, o Options) (knn.Index, error) {
	index := o.Index
	if index == nil {
		var err error
		index, err = knn.NewIndex(o.Method, knn.Config{
			Metric:       o.Metric,
			MetricParams: o.MetricParams,
			NJobs:        o.NJobs,
			RandomState:  o.RandomState,
		})
		if err != nil {
			return nil, err
		}
	}
	if err := index.Build(data); err != nil {
		return nil, err
	}
	return index, nil
}

// neighborCount is the neighbor-fetch rule k = min(n-1, round(3*perplexity)).
func neighborCount(nSamples int, perplexity float64) int {
	return gomath.MinInt(nSamples-1, gomath.RoundInt(3*perplexity))
}

// jointProbabilities turns a neighbor graph into the sparse matrix P.
// Every perplexity produces an independently calibrated row set over
// the same distances; the row sets are summed, not averaged, so each
// scale contributes proportionally before the single global
// normalization. Symmetrization only applies to square
// reference-to-reference matrices.
func jointProbabilities(graph *knn.Graph, perplexities []float64, symmetrize bool, nReference, workers int) (*sparse.CSR, error) {
	rows := calibrateRows(graph, perplexities[0], workers)
	for _, perplexity := range perplexities[1:] {
		scale := calibrateRows(graph, perplexity, workers)
		for i := range rows {
			for j := range rows[i] {
				rows[i][j] += scale[i][j]
			}
		}
	}

	P := sparse.FromRows(rows, graph.Indices, nReference)
	if symmetrize {
		var err error
		if P, err = P.Symmetrize(); err != nil {
			return nil, fmt.Errorf("affinity: %w", err)
		}
	}
	P.Scale(1 / P.Sum())
	return P, nil
}

func resolveWorkers(o Options) int {
	return parallel.ResolveJobs(o.NJobs)
}
