package knn

import (
	"sort"

	"github.com/viterin/vek"

	"github.com/toddrme2178/fastTSNE/pkg/distance"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
	"github.com/toddrme2178/fastTSNE/pkg/parallel"
	"github.com/toddrme2178/fastTSNE/pkg/queue"
)

const defaultLeafSize = 30

// BallTree is the exact index. Each node stores a centroid and the
// radius of the smallest enclosing ball for its points; the tree lives
// in array form with node i's children at 2i+1 and 2i+2.
type BallTree struct {
	space    distance.Space
	workers  int
	leafSize int

	// report maps a tree-space distance back into the requested
	// metric; normalize projects points onto the unit sphere first.
	// Both are set when the requested metric cannot drive the tree
	// directly (see newBallTree).
	report    func(float64) float64
	normalize bool

	data      []gomath.Vector
	idxArray  []int32
	nodes     []ballNode
	centroids []gomath.Vector
	built     bool
}

type ballNode struct {
	start, end int
	radius     float64
	leaf       bool
}

func newBallTree(space distance.Space, cfg Config) *BallTree {
	t := &BallTree{
		space:    space,
		workers:  parallel.ResolveJobs(cfg.NJobs),
		leafSize: defaultLeafSize,
	}

	// The pruning bound and the near/far child ordering rely on the
	// triangle inequality. Squared euclidean and cosine distances
	// violate it, but both are monotone in a plain euclidean distance
	// (on unit vectors for cosine: d^2 = 2*(1-cos)), so the tree
	// searches with that and maps the distances back on output.
	switch space.(type) {
	case distance.SqEuclidean:
		t.space = distance.Euclidean{}
		t.report = gomath.Square
	case distance.Cosine:
		t.space = distance.Euclidean{}
		t.normalize = true
		t.report = func(d float64) float64 { return d * d / 2 }
	}
	return t
}

// unitVectors copies the points onto the unit sphere. Zero vectors are
// kept as-is; cosine distance is undefined for them anyway.
func unitVectors(data []gomath.Vector) []gomath.Vector {
	out := make([]gomath.Vector, len(data))
	for i, v := range data {
		u := make(gomath.Vector, len(v))
		copy(u, v)
		if n := vek.Norm(u); n > 0 {
			vek.DivNumber_Inplace(u, n)
		}
		out[i] = u
	}
	return out
}

// Build partitions the reference data into the ball tree. The index is
// read-only afterwards.
func (t *BallTree) Build(data []gomath.Vector) error {
	if t.built {
		return ErrRebuilt
	}
	if _, err := checkBuildInput(data); err != nil {
		return err
	}

	t.data = data
	if t.normalize {
		t.data = unitVectors(data)
	}
	t.idxArray = make([]int32, len(data))
	for i := range t.idxArray {
		t.idxArray[i] = int32(i)
	}

	maxNodes := maxTreeNodes(len(data), t.leafSize)
	t.nodes = make([]ballNode, maxNodes)
	t.centroids = make([]gomath.Vector, maxNodes)

	t.buildNode(0, 0, len(data))
	t.built = true
	return nil
}

func maxTreeNodes(n, leafSize int) int {
	levels := 1
	for n > leafSize {
		n = (n + 1) / 2
		levels++
	}
	return (1 << levels) - 1
}

func (t *BallTree) buildNode(nodeID, start, end int) {
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, ballNode{})
		t.centroids = append(t.centroids, nil)
	}

	centroid := t.computeCentroid(start, end)
	t.centroids[nodeID] = centroid

	var radius float64
	for i := start; i < end; i++ {
		if d := t.space.Distance(centroid, t.data[t.idxArray[i]]); d > radius {
			radius = d
		}
	}

	if end-start <= t.leafSize {
		t.nodes[nodeID] = ballNode{start: start, end: end, radius: radius, leaf: true}
		return
	}
	t.nodes[nodeID] = ballNode{start: start, end: end, radius: radius}

	// Split on the dimension with the greatest spread; good enough in
	// practice for moderate dimensionality.
	splitDim := t.findSpreadDim(start, end)
	sub := t.idxArray[start:end]
	sort.Slice(sub, func(i, j int) bool {
		return t.data[sub[i]][splitDim] < t.data[sub[j]][splitDim]
	})
	mid := start + (end-start)/2

	t.buildNode(2*nodeID+1, start, mid)
	t.buildNode(2*nodeID+2, mid, end)
}

func (t *BallTree) computeCentroid(start, end int) gomath.Vector {
	dims := len(t.data[0])
	centroid := make(gomath.Vector, dims)
	for i := start; i < end; i++ {
		pt := t.data[t.idxArray[i]]
		for d := 0; d < dims; d++ {
			centroid[d] += pt[d]
		}
	}
	count := float64(end - start)
	for d := range centroid {
		centroid[d] /= count
	}
	return centroid
}

func (t *BallTree) findSpreadDim(start, end int) int {
	dims := len(t.data[0])
	bestDim, bestSpread := 0, -1.0
	for d := 0; d < dims; d++ {
		minVal, maxVal := gomath.MaxFloat, -gomath.MaxFloat
		for i := start; i < end; i++ {
			v := t.data[t.idxArray[i]][d]
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
		if spread := maxVal - minVal; spread > bestSpread {
			bestSpread = spread
			bestDim = d
		}
	}
	return bestDim
}

// QueryTrain returns the k nearest neighbors of every reference point,
// excluding the point itself. The tree is queried for k+1 candidates
// and the self match is stripped out.
func (t *BallTree) QueryTrain(data []gomath.Vector, k int) (*Graph, error) {
	if !t.built {
		return nil, ErrNotBuilt
	}
	if k < 1 || k > len(t.data)-1 {
		return nil, ErrBadNeighK
	}

	g := newGraph(len(t.data), k)
	parallel.RowLoop(len(t.data), t.workers, func(i int) {
		// With exact duplicates the self match may lose the distance
		// tie and not appear at all, in which case the closest k of the
		// k+1 candidates are the right answer anyway.
		col := 0
		for _, c := range t.search(t.data[i], k+1) {
			if c.Index == int32(i) || col == k {
				continue
			}
			g.Indices[i][col] = c.Index
			g.Distances[i][col] = t.reportDistance(c.Distance)
			col++
		}
	})
	return g, nil
}

// Query resolves unseen points against the built reference set.
func (t *BallTree) Query(newData []gomath.Vector, k int) (*Graph, error) {
	if !t.built {
		return nil, ErrNotBuilt
	}
	if k < 1 || k > len(t.data) {
		return nil, ErrBadNeighK
	}
	if len(newData) > 0 && len(newData[0]) != len(t.data[0]) {
		return nil, ErrDimension
	}

	queries := newData
	if t.normalize {
		queries = unitVectors(newData)
	}

	g := newGraph(len(newData), k)
	parallel.RowLoop(len(newData), t.workers, func(i int) {
		for col, c := range t.search(queries[i], k) {
			g.Indices[i][col] = c.Index
			g.Distances[i][col] = t.reportDistance(c.Distance)
		}
	})
	return g, nil
}

func (t *BallTree) reportDistance(d float64) float64 {
	if t.report == nil {
		return d
	}
	return t.report(d)
}

func (t *BallTree) search(query gomath.Vector, k int) []queue.Candidate {
	cq := queue.NewCandidateQueue(k)
	t.searchNode(0, query, cq)
	return cq.ToSlice()
}

func (t *BallTree) searchNode(nodeID int, query gomath.Vector, cq *queue.CandidateQueue) {
	node := t.nodes[nodeID]

	if node.leaf {
		for i := node.start; i < node.end; i++ {
			id := t.idxArray[i]
			cq.Add(id, t.space.Distance(query, t.data[id]))
		}
		return
	}

	left, right := 2*nodeID+1, 2*nodeID+2
	leftBound := t.lowerBound(left, query)
	rightBound := t.lowerBound(right, query)

	near, far, farBound := left, right, rightBound
	if rightBound < leftBound {
		near, far, farBound = right, left, leftBound
	}

	t.searchNode(near, query, cq)
	if worst, full := cq.Worst(); !full || farBound < worst {
		t.searchNode(far, query, cq)
	}
}

// lowerBound is the distance from the query to the node's ball.
func (t *BallTree) lowerBound(nodeID int, query gomath.Vector) float64 {
	d := t.space.Distance(query, t.centroids[nodeID]) - t.nodes[nodeID].radius
	if d < 0 {
		return 0
	}
	return d
}
