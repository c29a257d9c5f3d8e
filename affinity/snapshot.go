package affinity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/toddrme2178/fastTSNE/knn"
	"github.com/toddrme2178/fastTSNE/pkg/parallel"
	"github.com/toddrme2178/fastTSNE/pkg/sparse"
)

var (
	// ErrSnapshotCorrupt flags a snapshot whose payload does not match
	// its stored checksum.
	ErrSnapshotCorrupt = errors.New("affinity: snapshot checksum mismatch")

	// ErrNoIndex flags out-of-sample extension on a model restored
	// without a neighbor index.
	ErrNoIndex = errors.New("affinity: model has no neighbor index, out-of-sample extension is unavailable")
)

// perplexitySnapshot is the on-disk form of a PerplexityBased model:
// the calibration parameters, the cached neighbor arrays and the
// assembled matrix. The neighbor index itself is not serialized.
type perplexitySnapshot struct {
	NSamples   int         `msgpack:"n_samples"`
	Perplexity float64     `msgpack:"perplexity"`
	Symmetrize bool        `msgpack:"symmetrize"`
	Neighbors  [][]int32   `msgpack:"neighbors"`
	Distances  [][]float64 `msgpack:"distances"`
	Rows       int         `msgpack:"rows"`
	Cols       int         `msgpack:"cols"`
	Indptr     []int       `msgpack:"indptr"`
	Indices    []int32     `msgpack:"indices"`
	Data       []float64   `msgpack:"data"`
}

// Save writes the model state to path: an xxhash64 checksum followed
// by the msgpack payload. The expensive parts of a model (the neighbor
// query and the calibration) can then be restored without recompute.
func (a *PerplexityBased) Save(path string) error {
	snap := perplexitySnapshot{
		NSamples:   a.nSamples,
		Perplexity: a.perplexity,
		Symmetrize: a.symmetrize,
		Neighbors:  a.neighbors.Indices,
		Distances:  a.neighbors.Distances,
		Rows:       a.matrix.Rows(),
		Cols:       a.matrix.Cols(),
		Indptr:     a.matrix.Indptr,
		Indices:    a.matrix.Indices,
		Data:       a.matrix.Data,
	}

	payload, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("affinity: encode snapshot: %w", err)
	}

	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(buf, xxhash.Sum64(payload))
	copy(buf[8:], payload)
	return os.WriteFile(path, buf, 0o644)
}

// LoadPerplexityBased restores a model saved with Save. The checksum
// is verified before decoding, and any failure aborts before a model
// exists, so a loaded model is never partially valid.
//
// The neighbor index is not part of the snapshot. To re-enable ToNew,
// pass an index already built over the original training data via
// opts.Index; without one the restored model still supports P and
// SetPerplexity from the cached neighbor arrays.
func LoadPerplexityBased(path string, opts Options) (*PerplexityBased, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) < 8 {
		return nil, ErrSnapshotCorrupt
	}
	payload := buf[8:]
	if binary.BigEndian.Uint64(buf) != xxhash.Sum64(payload) {
		return nil, ErrSnapshotCorrupt
	}

	var snap perplexitySnapshot
	if err := msgpack.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("affinity: decode snapshot: %w", err)
	}

	return &PerplexityBased{
		nSamples:   snap.NSamples,
		perplexity: snap.Perplexity,
		symmetrize: snap.Symmetrize,
		workers:    parallel.ResolveJobs(opts.NJobs),
		index:      opts.Index,
		neighbors: &knn.Graph{
			Indices:   snap.Neighbors,
			Distances: snap.Distances,
		},
		matrix: sparse.New(snap.Rows, snap.Cols, snap.Indptr, snap.Indices, snap.Data),
	}, nil
}
