package affinity

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/toddrme2178/fastTSNE/knn"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
	"github.com/toddrme2178/fastTSNE/pkg/sparse"
)

// Multiscale combines several perplexity scales over one neighbor set.
// Neighbors are fetched once for the largest perplexity; every scale
// calibrates independently on the same distances and the calibrated
// rows are summed before the single global normalization.
type Multiscale struct {
	nSamples     int
	perplexities []float64
	symmetrize   bool
	workers      int

	index     knn.Index
	neighbors *knn.Graph
	matrix    *sparse.CSR
}

// NewMultiscale validates and corrects the perplexity list, builds the
// index, fetches neighbors for the maximum perplexity and assembles
// the combined P.
func NewMultiscale(data []gomath.Vector, perplexities []float64, opts Options) (*Multiscale, error) {
	nSamples := len(data)
	perplexities, err := checkPerplexities(perplexities, nSamples)
	if err != nil {
		return nil, err
	}

	index, err := buildIndex(data, opts)
	if err != nil {
		return nil, err
	}

	workers := resolveWorkers(opts)
	k := neighborCount(nSamples, gomath.Max(perplexities...))
	neighbors, err := index.QueryTrain(data, k)
	if err != nil {
		return nil, err
	}

	matrix, err := jointProbabilities(neighbors, perplexities, opts.Symmetrize, nSamples, workers)
	if err != nil {
		return nil, err
	}

	return &Multiscale{
		nSamples:     nSamples,
		perplexities: perplexities,
		symmetrize:   opts.Symmetrize,
		workers:      workers,
		index:        index,
		neighbors:    neighbors,
		matrix:       matrix,
	}, nil
}

// P returns the affinity matrix.
func (a *Multiscale) P() *sparse.CSR { return a.matrix }

// Perplexities returns the corrected calibration targets.
func (a *Multiscale) Perplexities() []float64 { return a.perplexities }

// ToNew extends the affinities to unseen points with the stored
// perplexity list.
func (a *Multiscale) ToNew(data []gomath.Vector) (*sparse.CSR, *knn.Graph, error) {
	return a.ToNewPerplexities(data, a.perplexities)
}

// ToNewPerplexities extends the affinities to unseen points with an
// override perplexity list. The rectangular result is never
// symmetrized but is still globally normalized.
func (a *Multiscale) ToNewPerplexities(data []gomath.Vector, perplexities []float64) (*sparse.CSR, *knn.Graph, error) {
	perplexities, err := checkPerplexities(perplexities, a.nSamples)
	if err != nil {
		return nil, nil, err
	}

	k := neighborCount(a.nSamples, gomath.Max(perplexities...))
	graph, err := a.index.Query(data, k)
	if err != nil {
		return nil, nil, err
	}

	P, err := jointProbabilities(graph, perplexities, false, a.nSamples, a.workers)
	if err != nil {
		return nil, nil, err
	}
	return P, graph, nil
}

// CheckPerplexities validates a perplexity list against the model's
// sample count, applying the same clamp-and-dedupe correction used at
// construction.
func (a *Multiscale) CheckPerplexities(perplexities []float64) ([]float64, error) {
	return checkPerplexities(perplexities, a.nSamples)
}

// checkPerplexities corrects a perplexity list. Values implying more
// neighbors than n-1 are clamped to the maximum feasible perplexity
// (n-1)/3; if the clamped value already sits in the corrected list it
// is dropped instead of duplicated. Both corrections warn rather than
// fail; a non-positive value is still a hard error.
func checkPerplexities(perplexities []float64, nSamples int) ([]float64, error) {
	if len(perplexities) == 0 {
		return nil, ErrNoPerplexities
	}
	sorted := make([]float64, len(perplexities))
	copy(sorted, perplexities)
	sort.Float64s(sorted)

	usable := make([]float64, 0, len(sorted))
	for _, perplexity := range sorted {
		if perplexity <= 0 {
			return nil, ErrPerplexityNonPositive
		}
		if 3*perplexity <= float64(nSamples-1) {
			usable = append(usable, perplexity)
			continue
		}

		corrected := float64(nSamples-1) / 3
		if containsFloat(usable, corrected) {
			log.Warn().
				Float64("perplexity", perplexity).
				Msg("perplexity is too high, dropping because the max feasible value is already in the list")
			continue
		}
		usable = append(usable, corrected)
		log.Warn().
			Float64("perplexity", perplexity).
			Float64("corrected", corrected).
			Msg("perplexity is too high for the sample count, clamping")
	}
	return usable, nil
}

func containsFloat(values []float64, v float64) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
