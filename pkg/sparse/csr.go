// Licensed to toddrme2178 under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. toddrme2178 licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package sparse implements the compressed sparse row matrix backing
// the affinity matrix P.
package sparse

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var ErrNotSquare = errors.New("sparse: symmetrization requires a square matrix")

// CSR is a compressed sparse row matrix. Column indices inside a row
// are kept sorted and duplicates are not expected; the assembly path
// never produces them.
type CSR struct {
	rows, cols int

	Indptr  []int
	Indices []int32
	Data    []float64
}

// New wraps preassembled CSR components, for callers that restore a
// matrix from storage. The slices are adopted, not copied.
func New(rows, cols int, indptr []int, indices []int32, data []float64) *CSR {
	return &CSR{rows: rows, cols: cols, Indptr: indptr, Indices: indices, Data: data}
}

func (m *CSR) Rows() int { return m.rows }
func (m *CSR) Cols() int { return m.cols }
func (m *CSR) Nnz() int  { return len(m.Data) }

// RowNnz returns the number of stored entries in row i.
func (m *CSR) RowNnz(i int) int {
	return m.Indptr[i+1] - m.Indptr[i]
}

// FromRows assembles a CSR matrix from per-row values and column
// indices. Every row holds exactly k = len(values[i]) entries, so the
// row pointers are plain multiples of k.
func FromRows(values [][]float64, columns [][]int32, cols int) *CSR {
	rows := len(values)
	nnz := 0
	for i := range values {
		nnz += len(values[i])
	}

	m := &CSR{
		rows:    rows,
		cols:    cols,
		Indptr:  make([]int, rows+1),
		Indices: make([]int32, 0, nnz),
		Data:    make([]float64, 0, nnz),
	}

	for i := range values {
		m.Indices = append(m.Indices, columns[i]...)
		m.Data = append(m.Data, values[i]...)
		m.Indptr[i+1] = len(m.Data)
		m.sortRow(i)
	}
	return m
}

func (m *CSR) sortRow(i int) {
	start, end := m.Indptr[i], m.Indptr[i+1]
	idx := m.Indices[start:end]
	val := m.Data[start:end]
	if sort.SliceIsSorted(idx, func(a, b int) bool { return idx[a] < idx[b] }) {
		return
	}
	sort.Sort(&rowSorter{idx: idx, val: val})
}

type rowSorter struct {
	idx []int32
	val []float64
}

func (s *rowSorter) Len() int           { return len(s.idx) }
func (s *rowSorter) Less(i, j int) bool { return s.idx[i] < s.idx[j] }
func (s *rowSorter) Swap(i, j int) {
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	s.val[i], s.val[j] = s.val[j], s.val[i]
}

// Transpose returns a new matrix holding the transpose, built with the
// usual counting pass so its rows come out sorted.
func (m *CSR) Transpose() *CSR {
	t := &CSR{
		rows:    m.cols,
		cols:    m.rows,
		Indptr:  make([]int, m.cols+1),
		Indices: make([]int32, m.Nnz()),
		Data:    make([]float64, m.Nnz()),
	}

	for _, col := range m.Indices {
		t.Indptr[col+1]++
	}
	for i := 0; i < m.cols; i++ {
		t.Indptr[i+1] += t.Indptr[i]
	}

	next := make([]int, m.cols)
	copy(next, t.Indptr[:m.cols])
	for row := 0; row < m.rows; row++ {
		for p := m.Indptr[row]; p < m.Indptr[row+1]; p++ {
			col := m.Indices[p]
			dst := next[col]
			t.Indices[dst] = int32(row)
			t.Data[dst] = m.Data[p]
			next[col]++
		}
	}
	return t
}

// Symmetrize returns (P + Pᵀ) / 2. Only square matrices can be
// symmetrized; out-of-sample matrices are rectangular and must not go
// through here.
func (m *CSR) Symmetrize() (*CSR, error) {
	if m.rows != m.cols {
		return nil, ErrNotSquare
	}
	t := m.Transpose()

	out := &CSR{
		rows:    m.rows,
		cols:    m.cols,
		Indptr:  make([]int, m.rows+1),
		Indices: make([]int32, 0, m.Nnz()),
		Data:    make([]float64, 0, m.Nnz()),
	}

	// Merge the sorted rows of P and Pᵀ, averaging shared entries.
	for i := 0; i < m.rows; i++ {
		a, aEnd := m.Indptr[i], m.Indptr[i+1]
		b, bEnd := t.Indptr[i], t.Indptr[i+1]
		for a < aEnd || b < bEnd {
			switch {
			case b >= bEnd || (a < aEnd && m.Indices[a] < t.Indices[b]):
				out.Indices = append(out.Indices, m.Indices[a])
				out.Data = append(out.Data, m.Data[a]/2)
				a++
			case a >= aEnd || t.Indices[b] < m.Indices[a]:
				out.Indices = append(out.Indices, t.Indices[b])
				out.Data = append(out.Data, t.Data[b]/2)
				b++
			default:
				out.Indices = append(out.Indices, m.Indices[a])
				out.Data = append(out.Data, (m.Data[a]+t.Data[b])/2)
				a++
				b++
			}
		}
		out.Indptr[i+1] = len(out.Data)
	}
	return out, nil
}

// Sum returns the total of all stored entries.
func (m *CSR) Sum() float64 {
	return floats.Sum(m.Data)
}

// Scale multiplies every stored entry by c in place.
func (m *CSR) Scale(c float64) {
	floats.Scale(c, m.Data)
}

// At returns the entry at (i, j), zero when it is not stored.
func (m *CSR) At(i, j int) float64 {
	start, end := m.Indptr[i], m.Indptr[i+1]
	row := m.Indices[start:end]
	p := sort.Search(len(row), func(k int) bool { return row[k] >= int32(j) })
	if p < len(row) && row[p] == int32(j) {
		return m.Data[start+p]
	}
	return 0
}

// Dense expands the matrix into dense rows. Intended for tests and
// small matrices only.
func (m *CSR) Dense() [][]float64 {
	dense := make([][]float64, m.rows)
	for i := range dense {
		dense[i] = make([]float64, m.cols)
		for p := m.Indptr[i]; p < m.Indptr[i+1]; p++ {
			dense[i][m.Indices[p]] = m.Data[p]
		}
	}
	return dense
}
