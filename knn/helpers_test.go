package knn

import (
	"math/rand"

	"github.com/toddrme2178/fastTSNE/pkg/distance"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
	"github.com/toddrme2178/fastTSNE/pkg/queue"
)

func generateTestVectors(num, dim int, seed int64) []gomath.Vector {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([]gomath.Vector, num)
	for i := range vectors {
		vectors[i] = make(gomath.Vector, dim)
		for d := range vectors[i] {
			vectors[i][d] = rng.NormFloat64()
		}
	}
	return vectors
}

// bruteForceKNN is the reference answer for the index tests. self < 0
// keeps every reference point; otherwise that index is excluded.
func bruteForceKNN(reference []gomath.Vector, query gomath.Vector, k, self int, space distance.Space) []queue.Candidate {
	cq := queue.NewCandidateQueue(k)
	for j := range reference {
		if j == self {
			continue
		}
		cq.Add(int32(j), space.Distance(query, reference[j]))
	}
	return cq.ToSlice()
}
