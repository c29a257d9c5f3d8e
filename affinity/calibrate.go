package affinity

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/toddrme2178/fastTSNE/knn"
	"github.com/toddrme2178/fastTSNE/pkg/parallel"
)

const (
	calibrationMaxSteps = 100
	calibrationTol      = 1e-6

	// Floor for a fully vanished kernel row. Machine epsilon keeps
	// 1/sumP finite, so the final scale yields a zero row instead of
	// 0 * Inf = NaN.
	calibrationEps = 2.220446049250313e-16
)

// calibrateRows converts every neighbor-distance row into conditional
// probabilities P_{j|i} whose entropy matches log(perplexity). Rows
// are independent, so the binary search runs row-parallel with each
// worker writing only its own rows.
func calibrateRows(graph *knn.Graph, perplexity float64, workers int) [][]float64 {
	rows := make([][]float64, graph.Len())
	parallel.RowLoop(graph.Len(), workers, func(i int) {
		rows[i] = make([]float64, len(graph.Distances[i]))
		calibrateRow(graph.Distances[i], perplexity, rows[i])
	})
	return rows
}

// calibrateRow finds the Gaussian precision beta for one point by
// binary search, then normalizes exp(-d^2 * beta) into a probability
// row. The search brackets beta by doubling or halving until both
// bounds exist, then bisects.
func calibrateRow(distances []float64, perplexity float64, out []float64) {
	desiredEntropy := math.Log(perplexity)

	beta := 1.0
	betaMin := math.Inf(-1)
	betaMax := math.Inf(1)

	var sumP float64
	for step := 0; step < calibrationMaxSteps; step++ {
		sumP = 0
		sumDP := 0.0
		for j, d := range distances {
			p := math.Exp(-d * d * beta)
			out[j] = p
			sumP += p
			sumDP += d * d * p
		}
		if sumP == 0 {
			sumP = calibrationEps
		}

		entropy := math.Log(sumP) + beta*sumDP/sumP
		diff := entropy - desiredEntropy
		if math.Abs(diff) <= calibrationTol {
			break
		}

		if diff > 0 {
			// Entropy too high: the kernel is too wide, raise beta.
			betaMin = beta
			if math.IsInf(betaMax, 1) {
				beta *= 2
			} else {
				beta = (beta + betaMax) / 2
			}
		} else {
			betaMax = beta
			if math.IsInf(betaMin, -1) {
				beta /= 2
			} else {
				beta = (beta + betaMin) / 2
			}
		}
	}

	floats.Scale(1/sumP, out)
}
