package knn

import (
	"container/heap"
	"math/rand"

	"github.com/toddrme2178/fastTSNE/pkg/distance"
	"github.com/toddrme2178/fastTSNE/pkg/gomath"
	"github.com/toddrme2178/fastTSNE/pkg/parallel"
	"github.com/toddrme2178/fastTSNE/pkg/queue"
)

const (
	descentMaxIter = 10
	descentRho     = 0.5
	descentDelta   = 0.001
	defaultSeed    = 42
)

// NNDescent is the approximate index. Build stores the reference data;
// the k-neighbor graph itself is refined lazily on the first query via
// nearest neighbor descent (random initialization plus iterative
// neighbor-of-neighbor exploration). Unseen points are resolved by a
// best-first walk over the refined graph.
type NNDescent struct {
	space   distance.Space
	workers int
	seed    int64

	data  []gomath.Vector
	graph *Graph
	built bool
}

func newNNDescent(space distance.Space, cfg Config) *NNDescent {
	seed := cfg.RandomState
	if seed == 0 {
		seed = defaultSeed
	}
	return &NNDescent{
		space:   space,
		workers: parallel.ResolveJobs(cfg.NJobs),
		seed:    seed,
	}
}

func (nd *NNDescent) Build(data []gomath.Vector) error {
	if nd.built {
		return ErrRebuilt
	}
	if _, err := checkBuildInput(data); err != nil {
		return err
	}
	nd.data = data
	nd.built = true
	return nil
}

// QueryTrain returns the approximate k nearest neighbors of every
// reference point. The refined graph is cached so later calls and
// out-of-sample queries reuse it.
func (nd *NNDescent) QueryTrain(data []gomath.Vector, k int) (*Graph, error) {
	if !nd.built {
		return nil, ErrNotBuilt
	}
	if k < 1 || k > len(nd.data)-1 {
		return nil, ErrBadNeighK
	}
	if nd.graph == nil || nd.graph.K() < k {
		nd.graph = nd.descend(k)
	}
	return nd.graph.Truncate(k), nil
}

// Query resolves unseen points with a best-first search over the
// reference graph, seeded from random reference points.
func (nd *NNDescent) Query(newData []gomath.Vector, k int) (*Graph, error) {
	if !nd.built {
		return nil, ErrNotBuilt
	}
	if k < 1 || k > len(nd.data) {
		return nil, ErrBadNeighK
	}
	if len(newData) > 0 && len(newData[0]) != len(nd.data[0]) {
		return nil, ErrDimension
	}
	if nd.graph == nil || nd.graph.K() < gomath.MinInt(k, len(nd.data)-1) {
		nd.graph = nd.descend(gomath.MinInt(k, len(nd.data)-1))
	}

	g := newGraph(len(newData), k)
	parallel.RowLoop(len(newData), nd.workers, func(i int) {
		rng := rand.New(rand.NewSource(rowSeed(nd.seed, i)))
		for col, c := range nd.searchGraph(newData[i], k, rng) {
			g.Indices[i][col] = c.Index
			g.Distances[i][col] = c.Distance
		}
	})
	return g, nil
}

func rowSeed(seed int64, row int) int64 {
	return seed + int64(row)*2654435761
}

// descend builds the k-neighbor graph. Updates are row-local: each
// worker rewrites only its own rows, so the refinement needs no locks
// and is deterministic for a fixed seed.
func (nd *NNDescent) descend(k int) *Graph {
	n := len(nd.data)
	g := newGraph(n, k)

	// Random initialization.
	parallel.RowLoop(n, nd.workers, func(i int) {
		rng := rand.New(rand.NewSource(rowSeed(nd.seed, i)))
		seen := make(map[int32]bool, k)
		cq := queue.NewCandidateQueue(k)
		for len(seen) < k {
			j := int32(rng.Intn(n))
			if int(j) == i || seen[j] {
				continue
			}
			seen[j] = true
			cq.Add(j, nd.space.Distance(nd.data[i], nd.data[j]))
		}
		for col, c := range cq.ToSlice() {
			g.Indices[i][col] = c.Index
			g.Distances[i][col] = c.Distance
		}
	})

	sampleRng := rand.New(rand.NewSource(nd.seed))
	updates := make([]int, n)

	for iter := 0; iter < descentMaxIter; iter++ {
		// Forward plus reverse candidate lists, sampled at rho. Built
		// serially so the parallel phase sees a frozen snapshot.
		candidates := make([][]int32, n)
		for i := 0; i < n; i++ {
			candidates[i] = append(candidates[i], g.Indices[i]...)
		}
		for i := 0; i < n; i++ {
			for _, j := range g.Indices[i] {
				if len(candidates[j]) < 2*k {
					candidates[j] = append(candidates[j], int32(i))
				}
			}
		}
		for i := 0; i < n; i++ {
			candidates[i] = sampleCandidates(candidates[i], descentRho, sampleRng)
		}

		prev := g
		next := newGraph(n, k)
		parallel.RowLoop(n, nd.workers, func(i int) {
			updates[i] = nd.refineRow(i, k, prev, candidates, next)
		})
		g = next

		total := 0
		for _, u := range updates {
			total += u
		}
		if float64(total) < descentDelta*float64(n*k) {
			break
		}
	}
	return g
}

// refineRow rebuilds row i from its current neighbors, its sampled
// candidates and their neighbors (the neighbor-of-neighbor step).
// Returns the number of entries that changed.
func (nd *NNDescent) refineRow(i, k int, prev *Graph, candidates [][]int32, next *Graph) int {
	cq := queue.NewCandidateQueue(k)
	seen := make(map[int32]bool, 4*k)
	seen[int32(i)] = true

	consider := func(j int32) {
		if seen[j] {
			return
		}
		seen[j] = true
		cq.Add(j, nd.space.Distance(nd.data[i], nd.data[j]))
	}

	for col, j := range prev.Indices[i] {
		if !seen[j] {
			seen[j] = true
			cq.Add(j, prev.Distances[i][col])
		}
	}
	for _, c := range candidates[i] {
		consider(c)
		for _, j := range prev.Indices[c] {
			consider(j)
		}
	}

	changed := 0
	for col, c := range cq.ToSlice() {
		next.Indices[i][col] = c.Index
		next.Distances[i][col] = c.Distance
		if c.Index != prev.Indices[i][col] {
			changed++
		}
	}
	return changed
}

func sampleCandidates(candidates []int32, rho float64, rng *rand.Rand) []int32 {
	target := int(rho * float64(len(candidates)))
	if target < 1 {
		target = 1
	}
	if target >= len(candidates) {
		return candidates
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates[:target]
}

// searchGraph is a best-first traversal of the reference graph, in the
// style of an HNSW layer search: expand the closest unexpanded
// candidate until it cannot improve the current top k.
func (nd *NNDescent) searchGraph(query gomath.Vector, k int, rng *rand.Rand) []queue.Candidate {
	n := len(nd.data)
	ef := gomath.MaxInt(2*k, 20)
	if ef > n {
		ef = n
	}

	visited := make([]bool, n)
	results := queue.NewCandidateQueue(ef)
	frontier := &minCandidateHeap{}
	heap.Init(frontier)

	seeds := gomath.MinInt(n, ef)
	for len(*frontier) < seeds {
		j := int32(rng.Intn(n))
		if visited[j] {
			continue
		}
		visited[j] = true
		d := nd.space.Distance(query, nd.data[j])
		results.Add(j, d)
		heap.Push(frontier, queue.Candidate{Index: j, Distance: d})
	}

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(queue.Candidate)
		if worst, full := results.Worst(); full && cur.Distance > worst {
			break
		}
		for _, j := range nd.graph.Indices[cur.Index] {
			if visited[j] {
				continue
			}
			visited[j] = true
			d := nd.space.Distance(query, nd.data[j])
			if worst, full := results.Worst(); full && d >= worst {
				continue
			}
			results.Add(j, d)
			heap.Push(frontier, queue.Candidate{Index: j, Distance: d})
		}
	}

	top := results.ToSlice()
	if len(top) > k {
		top = top[:k]
	}
	return top
}

type minCandidateHeap []queue.Candidate

func (h minCandidateHeap) Len() int            { return len(h) }
func (h minCandidateHeap) Less(i, j int) bool  { return h[i].Distance < h[j].Distance }
func (h minCandidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minCandidateHeap) Push(x interface{}) { *h = append(*h, x.(queue.Candidate)) }

func (h *minCandidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
