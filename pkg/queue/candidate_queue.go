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

package queue

import "container/heap"

// Candidate is a neighbor candidate found during a kNN traversal.
type Candidate struct {
	Index    int32
	Distance float64
}

// candidateHeap is a max-heap on distance, so the current worst
// candidate sits at the root and can be evicted in O(log k).
type candidateHeap []Candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }

func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// CandidateQueue keeps the k closest candidates seen so far.
type CandidateQueue struct {
	heap    candidateHeap
	maxSize int
}

func NewCandidateQueue(maxSize int) *CandidateQueue {
	return &CandidateQueue{
		heap:    make(candidateHeap, 0, maxSize+1),
		maxSize: maxSize,
	}
}

// Add offers a candidate, evicting the farthest one when full.
func (cq *CandidateQueue) Add(index int32, dist float64) {
	if len(cq.heap) == cq.maxSize && dist >= cq.heap[0].Distance {
		return
	}
	heap.Push(&cq.heap, Candidate{Index: index, Distance: dist})
	if len(cq.heap) > cq.maxSize {
		heap.Pop(&cq.heap)
	}
}

// Worst returns the largest stored distance. ok is false while the
// queue still has room, in which case no pruning bound exists yet.
func (cq *CandidateQueue) Worst() (float64, bool) {
	if len(cq.heap) < cq.maxSize {
		return 0, false
	}
	return cq.heap[0].Distance, true
}

func (cq *CandidateQueue) Len() int { return len(cq.heap) }

// ToSlice returns the stored candidates ordered by increasing distance.
// The queue is left empty afterwards.
func (cq *CandidateQueue) ToSlice() []Candidate {
	result := make([]Candidate, len(cq.heap))
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&cq.heap).(Candidate)
	}
	return result
}
