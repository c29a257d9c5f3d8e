package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRowsLayout(t *testing.T) {
	values := [][]float64{
		{0.5, 0.3, 0.2},
		{0.1, 0.7, 0.2},
	}
	columns := [][]int32{
		{3, 1, 0},
		{2, 0, 4},
	}

	m := FromRows(values, columns, 5)

	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 5, m.Cols())
	assert.Equal(t, 6, m.Nnz())
	assert.Equal(t, []int{0, 3, 6}, m.Indptr)

	// Row entries come out sorted by column.
	assert.Equal(t, []int32{0, 1, 3, 0, 2, 4}, m.Indices)
	assert.InDelta(t, 0.2, m.At(0, 0), 1e-15)
	assert.InDelta(t, 0.3, m.At(0, 1), 1e-15)
	assert.InDelta(t, 0.5, m.At(0, 3), 1e-15)
	assert.Zero(t, m.At(0, 2))
	assert.InDelta(t, 0.7, m.At(1, 2), 1e-15)
}

func TestTranspose(t *testing.T) {
	m := FromRows(
		[][]float64{{1, 2}, {3, 4}, {5, 6}},
		[][]int32{{0, 2}, {1, 3}, {0, 3}},
		4,
	)

	tr := m.Transpose()
	require.Equal(t, 4, tr.Rows())
	require.Equal(t, 3, tr.Cols())

	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			assert.Equal(t, m.At(i, j), tr.At(j, i))
		}
	}
}

func TestSymmetrize(t *testing.T) {
	m := FromRows(
		[][]float64{{1, 1}, {2, 2}, {4, 4}},
		[][]int32{{1, 2}, {0, 2}, {0, 1}},
		3,
	)

	sym, err := m.Symmetrize()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, sym.At(i, j), sym.At(j, i), "entry (%d,%d)", i, j)
			assert.InDelta(t, (m.At(i, j)+m.At(j, i))/2, sym.At(i, j), 1e-15)
		}
	}

	// The total mass is preserved by the averaging.
	assert.InDelta(t, m.Sum(), sym.Sum(), 1e-12)
}

func TestSymmetrizeRectangular(t *testing.T) {
	m := FromRows([][]float64{{1}}, [][]int32{{2}}, 4)

	_, err := m.Symmetrize()
	assert.ErrorIs(t, err, ErrNotSquare)
}

func TestSumScale(t *testing.T) {
	m := FromRows([][]float64{{1, 2}, {3, 4}}, [][]int32{{0, 1}, {0, 1}}, 2)

	assert.InDelta(t, 10.0, m.Sum(), 1e-15)
	m.Scale(1 / m.Sum())
	assert.InDelta(t, 1.0, m.Sum(), 1e-15)
}

func TestDense(t *testing.T) {
	m := FromRows([][]float64{{1, 2}}, [][]int32{{3, 1}}, 4)

	assert.Equal(t, [][]float64{{0, 2, 0, 1}}, m.Dense())
}
