// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel provides a worker pool with kernel-launch semantics.
//
// The render pipeline is organized as a sequence of data-parallel stages:
// one logical task per environment (transform construction) or per
// destination row (tile pack/unpack). Each stage is launched as a kernel
// over an index range and joined before the next stage consumes its
// output. Run1D and Run2D return only after every task has completed,
// which is the barrier the pipeline relies on.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed-size pool of worker goroutines for index-range kernels.
//
// Work is distributed as contiguous chunks of the index range rather than
// per-index tasks; chunk claiming uses an atomic cursor so faster workers
// naturally pick up more chunks.
//
// Thread safety: Pool is safe for concurrent use. A nil *Pool is valid
// and runs every kernel serially on the calling goroutine, which keeps
// small configurations and tests free of goroutine overhead.
type Pool struct {
	workers int

	// closed indicates whether the pool has been shut down.
	// Kernels launched on a closed pool run serially.
	closed atomic.Bool
}

// New creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers returns the number of workers the pool launches kernels on.
// A nil pool reports 1.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workers
}

// Close shuts the pool down. Kernels launched after Close run serially.
// Close is safe to call multiple times.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.closed.Store(true)
}

// chunkSize picks a chunk length that gives each worker several chunks,
// so uneven per-index cost still balances.
func (p *Pool) chunkSize(n int) int {
	chunks := p.workers * 4
	size := (n + chunks - 1) / chunks
	if size < 1 {
		size = 1
	}
	return size
}

// Run1D executes fn(i) for every i in [0, n) and returns once all calls
// have completed. No ordering is guaranteed between indices; fn must not
// assume any.
func (p *Pool) Run1D(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if p == nil || p.closed.Load() || p.workers == 1 || n == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	chunk := p.chunkSize(n)
	var cursor atomic.Int64
	var wg sync.WaitGroup

	workers := p.workers
	if workers > n {
		workers = n
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				start := int(cursor.Add(int64(chunk))) - chunk
				if start >= n {
					return
				}
				end := start + chunk
				if end > n {
					end = n
				}
				for i := start; i < end; i++ {
					fn(i)
				}
			}
		}()
	}
	wg.Wait()
}

// Run2D executes fn(y, x) for every y in [0, h), x in [0, w) and returns
// once all calls have completed. Parallelism is over rows; a single row
// is always processed by one worker, left to right.
func (p *Pool) Run2D(h, w int, fn func(y, x int)) {
	if h <= 0 || w <= 0 {
		return
	}
	p.Run1D(h, func(y int) {
		for x := 0; x < w; x++ {
			fn(y, x)
		}
	})
}
