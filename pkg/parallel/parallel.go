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

// Package parallel provides the data-parallel row loops used by the
// nearest-neighbor search and the per-row bandwidth calibration. Work
// is partitioned into contiguous row chunks so each worker writes only
// to its own rows and no locking is needed.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/toddrme2178/fastTSNE/pkg/gomath"
)

// ResolveJobs maps an n_jobs value onto a concrete worker count using
// the scikit-learn convention: -1 means all cores, -2 all but one, and
// so on. Non-positive results and a zero input collapse to one worker.
func ResolveJobs(nJobs int) int {
	cpus := runtime.NumCPU()
	if nJobs < 0 {
		nJobs = cpus + 1 + nJobs
	}
	if nJobs < 1 {
		return 1
	}
	if nJobs > cpus {
		return cpus
	}
	return nJobs
}

// RowLoop runs fn(i) for every i in [0, n) across the given number of
// workers. fn must only touch row i of its outputs.
func RowLoop(n, workers int, fn func(i int)) {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := gomath.MinInt(start+chunk, n)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// RowLoopErr is RowLoop for fallible work. The first error cancels
// nothing (every call is a bounded computation) but is returned once
// all workers finish their chunks.
func RowLoopErr(n, workers int, fn func(i int) error) error {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	if workers > n {
		workers = n
	}

	var eg errgroup.Group
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := gomath.MinInt(start+chunk, n)
		if start >= end {
			break
		}
		eg.Go(func() error {
			for i := start; i < end; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
