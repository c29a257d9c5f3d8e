package affinity

import (
	"github.com/rs/zerolog/log"

	"github.com/toddrme2178/fastTSNE/knn"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
	"github.com/toddrme2178/fastTSNE/pkg/sparse"
)

// PerplexityBased computes affinities over the neighbors implied by a
// single target perplexity. The neighbor and distance matrices are
// cached so the perplexity can later be lowered without a new search.
type PerplexityBased struct {
	nSamples   int
	perplexity float64
	symmetrize bool
	workers    int

	index     knn.Index
	neighbors *knn.Graph
	matrix    *sparse.CSR
}

// NewPerplexityBased builds the index over data, fetches
// min(n-1, 3*perplexity) neighbors per point and calibrates P. An
// infeasibly large perplexity is clamped with a warning; any other
// validation failure aborts before any state exists.
func NewPerplexityBased(data []gomath.Vector, perplexity float64, opts Options) (*PerplexityBased, error) {
	nSamples := len(data)
	perplexity, err := checkPerplexity(perplexity, nSamples)
	if err != nil {
		return nil, err
	}

	index, err := buildIndex(data, opts)
	if err != nil {
		return nil, err
	}

	// Fetch and keep the neighbors so a lowered perplexity can reuse
	// them later.
	workers := resolveWorkers(opts)
	neighbors, err := index.QueryTrain(data, neighborCount(nSamples, perplexity))
	if err != nil {
		return nil, err
	}

	matrix, err := jointProbabilities(neighbors, []float64{perplexity}, opts.Symmetrize, nSamples, workers)
	if err != nil {
		return nil, err
	}

	return &PerplexityBased{
		nSamples:   nSamples,
		perplexity: perplexity,
		symmetrize: opts.Symmetrize,
		workers:    workers,
		index:      index,
		neighbors:  neighbors,
		matrix:     matrix,
	}, nil
}

// P returns the affinity matrix.
func (a *PerplexityBased) P() *sparse.CSR { return a.matrix }

// Perplexity returns the current calibration target.
func (a *PerplexityBased) Perplexity() float64 { return a.perplexity }

// Index exposes the built neighbor index, shared and read-only.
func (a *PerplexityBased) Index() knn.Index { return a.index }

// Neighbors exposes the cached neighbor graph. Callers must treat it
// as read-only; SetPerplexity depends on it staying untouched.
func (a *PerplexityBased) Neighbors() *knn.Graph { return a.neighbors }

// SetPerplexity recalibrates the stored matrix in place. Lowering the
// perplexity only needs a column-truncated view of the cached
// neighbors; raising it past the cached width is an error and leaves
// the model untouched. The matrix is fully recomputed before being
// swapped in, so a failure never yields a half-updated model.
func (a *PerplexityBased) SetPerplexity(perplexity float64) error {
	if perplexity == a.perplexity {
		return nil
	}
	perplexity, err := checkPerplexity(perplexity, a.nSamples)
	if err != nil {
		return err
	}

	k := neighborCount(a.nSamples, perplexity)
	if k > a.neighbors.K() {
		return ErrPerplexityTooLarge
	}

	matrix, err := jointProbabilities(a.neighbors.Truncate(k), []float64{perplexity}, true, a.nSamples, a.workers)
	if err != nil {
		return err
	}
	a.perplexity = perplexity
	a.matrix = matrix
	return nil
}

// ToNew extends the affinities to unseen points with the stored
// perplexity.
func (a *PerplexityBased) ToNew(data []gomath.Vector) (*sparse.CSR, *knn.Graph, error) {
	return a.ToNewPerplexity(data, a.perplexity)
}

// ToNewPerplexity extends the affinities to unseen points with an
// override perplexity. The existing index answers the neighbor query;
// the rectangular result is never symmetrized but is still globally
// normalized over the new batch.
func (a *PerplexityBased) ToNewPerplexity(data []gomath.Vector, perplexity float64) (*sparse.CSR, *knn.Graph, error) {
	if a.index == nil {
		return nil, nil, ErrNoIndex
	}
	perplexity, err := checkPerplexity(perplexity, a.nSamples)
	if err != nil {
		return nil, nil, err
	}

	graph, err := a.index.Query(data, neighborCount(a.nSamples, perplexity))
	if err != nil {
		return nil, nil, err
	}

	P, err := jointProbabilities(graph, []float64{perplexity}, false, a.nSamples, a.workers)
	if err != nil {
		return nil, nil, err
	}
	return P, graph, nil
}

// checkPerplexity validates a perplexity target against the sample
// count. Non-positive values are a hard error; values implying more
// than n-1 neighbors are corrected to the maximum feasible perplexity
// (n-1)/3 with a warning.
func checkPerplexity(perplexity float64, nSamples int) (float64, error) {
	if perplexity <= 0 {
		return 0, ErrPerplexityNonPositive
	}
	if float64(nSamples-1) < 3*perplexity {
		corrected := float64(nSamples-1) / 3
		log.Warn().
			Float64("perplexity", perplexity).
			Float64("corrected", corrected).
			Msg("perplexity is too high for the sample count, clamping")
		return corrected, nil
	}
	return perplexity, nil
}
