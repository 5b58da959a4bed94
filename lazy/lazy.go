/*
Copyright © 2019 the Bucket authors.
This file is part of Bucket.

Bucket is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Bucket is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Bucket.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package lazy provides deferred, chunk-parallel computations over numeric
// arrays. Operations on an Array describe a computation instead of
// performing it; nothing is evaluated until Materialize is called. Each
// chunk of each node in the resulting graph is computed at most once, so
// expensive upstream operations are shared among all downstream consumers.
package lazy

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/ctessum/sparse"
)

// DefaultChunkLen is the number of samples per chunk for arrays created
// without an explicit chunk length.
const DefaultChunkLen = 1 << 16

// ChunkFunc computes the values of one chunk of an array from the matching
// chunks of the array's dependencies.
type ChunkFunc func(chunk int, deps [][]float64) ([]float64, error)

// Array is a deferred, chunked array of float64 values. An Array with
// rows > 1 holds that many row-stacked value rows per sample; within each
// chunk the rows are laid out consecutively (all row-0 values, then all
// row-1 values, and so on).
//
// Arrays are safe for concurrent use. The results of a computation are
// retained after the first materialization; callers should not modify
// returned or source data after wrapping it, as later reads would observe
// the changes.
type Array struct {
	shape []int
	m     int   // number of samples (columns)
	rows  int   // stacked rows per sample
	offs  []int // sample offsets of chunk boundaries, len nchunks+1

	deps []*Array
	// gather marks nodes whose ChunkFunc receives the fully assembled
	// values of each dependency rather than the matching chunk.
	gather bool
	f      ChunkFunc

	chunks []chunkState
}

type chunkState struct {
	once sync.Once
	vals []float64
	err  error
}

func newArray(shape []int, m, rows, chunkLen int) *Array {
	if chunkLen < 1 {
		chunkLen = DefaultChunkLen
	}
	nchunks := (m + chunkLen - 1) / chunkLen
	offs := make([]int, nchunks+1)
	for i := 1; i <= nchunks; i++ {
		end := i * chunkLen
		if end > m {
			end = m
		}
		offs[i] = end
	}
	return &Array{
		shape:  shape,
		m:      m,
		rows:   rows,
		offs:   offs,
		chunks: make([]chunkState, nchunks),
	}
}

// FromDense returns a deferred array backed by the dense array d, using the
// default chunk length.
func FromDense(d *sparse.DenseArray) *Array {
	return FromDenseChunked(d, DefaultChunkLen)
}

// FromDenseChunked returns a deferred array backed by d, split into chunks
// of chunkLen samples. The array references d's elements without copying.
func FromDenseChunked(d *sparse.DenseArray, chunkLen int) *Array {
	shape := make([]int, len(d.Shape))
	copy(shape, d.Shape)
	a := newArray(shape, len(d.Elements), 1, chunkLen)
	vals := d.Elements
	a.f = func(i int, _ [][]float64) ([]float64, error) {
		return vals[a.offs[i]:a.offs[i+1]], nil
	}
	return a
}

// FromSlice returns a deferred array backed by vals.
func FromSlice(vals []float64) *Array {
	a := newArray([]int{len(vals)}, len(vals), 1, DefaultChunkLen)
	a.f = func(i int, _ [][]float64) ([]float64, error) {
		return vals[a.offs[i]:a.offs[i+1]], nil
	}
	return a
}

// Shape returns the logical shape of the array.
func (a *Array) Shape() []int {
	s := make([]int, len(a.shape))
	copy(s, a.shape)
	return s
}

// Len returns the total number of values in the array.
func (a *Array) Len() int { return a.rows * a.m }

// NChunks returns the number of independently computed chunks.
func (a *Array) NChunks() int { return len(a.chunks) }

// Array returns a itself. It allows *Array to satisfy interfaces that
// unwrap labeled data arrays.
func (a *Array) Array() *Array { return a }

// NewOp returns a deferred array whose chunk i is computed by f from chunk i
// of each dependency. All dependencies must share the same sample count and
// chunk boundaries. The result has rows row-stacked values per sample.
func NewOp(rows int, deps []*Array, f ChunkFunc) (*Array, error) {
	if len(deps) == 0 {
		return nil, fmt.Errorf("lazy: operation needs at least one dependency")
	}
	d0 := deps[0]
	for _, d := range deps[1:] {
		if err := alignedWith(d0, d); err != nil {
			return nil, err
		}
	}
	var shape []int
	if rows == 1 {
		shape = []int{d0.m}
	} else {
		shape = []int{rows, d0.m}
	}
	out := newArray(shape, d0.m, rows, 0)
	out.offs = d0.offs
	out.chunks = make([]chunkState, len(d0.chunks))
	out.deps = deps
	out.f = f
	return out, nil
}

func alignedWith(a, b *Array) error {
	if a.m != b.m || len(a.offs) != len(b.offs) {
		return fmt.Errorf("lazy: arrays are not aligned: %d samples in %d chunks != %d samples in %d chunks",
			a.m, len(a.chunks), b.m, len(b.chunks))
	}
	for i, o := range a.offs {
		if b.offs[i] != o {
			return fmt.Errorf("lazy: arrays have mismatched chunk boundaries")
		}
	}
	return nil
}

// Map returns a deferred elementwise application of f.
func (a *Array) Map(f func(float64) float64) *Array {
	out, _ := NewOp(a.rows, []*Array{a}, func(_ int, deps [][]float64) ([]float64, error) {
		in := deps[0]
		vals := make([]float64, len(in))
		for j, v := range in {
			vals[j] = f(v)
		}
		return vals, nil
	})
	out.shape = a.Shape()
	return out
}

// Zip returns a deferred elementwise combination of a and b, which must be
// aligned (same length and chunk structure).
func Zip(a, b *Array, f func(x, y float64) float64) (*Array, error) {
	if a.rows != b.rows {
		return nil, fmt.Errorf("lazy: arrays have %d and %d stacked rows", a.rows, b.rows)
	}
	return NewOp(a.rows, []*Array{a, b}, func(_ int, deps [][]float64) ([]float64, error) {
		x, y := deps[0], deps[1]
		vals := make([]float64, len(x))
		for j := range x {
			vals[j] = f(x[j], y[j])
		}
		return vals, nil
	})
}

// Row returns a deferred view of one stacked row of a multi-row array.
func (a *Array) Row(r int) *Array {
	if r < 0 || r >= a.rows {
		panic(fmt.Sprintf("lazy: row index %d out of range for %d rows", r, a.rows))
	}
	out, _ := NewOp(1, []*Array{a}, func(i int, deps [][]float64) ([]float64, error) {
		cs := a.offs[i+1] - a.offs[i]
		return deps[0][r*cs : (r+1)*cs], nil
	})
	return out
}

// newGather returns a single-chunk node whose ChunkFunc receives the fully
// assembled values of each dependency.
func newGather(shape []int, n int, deps []*Array, f ChunkFunc) *Array {
	out := &Array{
		shape:  shape,
		m:      n,
		rows:   1,
		offs:   []int{0, n},
		deps:   deps,
		gather: true,
		f:      f,
		chunks: make([]chunkState, 1),
	}
	return out
}

// Head returns a deferred view of the first n values of the array.
func (a *Array) Head(n int) *Array {
	if n < 0 || n > a.Len() {
		panic(fmt.Sprintf("lazy: head length %d out of range for %d values", n, a.Len()))
	}
	return newGather([]int{n}, n, []*Array{a}, func(_ int, deps [][]float64) ([]float64, error) {
		return deps[0][:n], nil
	})
}

// Reshape returns a view of the array with the given shape, which must hold
// the same total number of values.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != a.Len() {
		return nil, fmt.Errorf("lazy: cannot reshape %d values to %v", a.Len(), shape)
	}
	out := &Array{
		shape:  shape,
		m:      a.m,
		rows:   a.rows,
		offs:   a.offs,
		deps:   a.deps,
		gather: a.gather,
		f:      a.f,
		chunks: a.chunks,
	}
	return out, nil
}

// chunk computes (or returns the previously computed values of) chunk i.
func (a *Array) chunk(ctx context.Context, i int) ([]float64, error) {
	st := &a.chunks[i]
	st.once.Do(func() {
		deps := make([][]float64, len(a.deps))
		for j, d := range a.deps {
			if a.gather {
				if st.err = d.resolve(ctx); st.err != nil {
					return
				}
				deps[j] = d.assemble()
			} else {
				deps[j], st.err = d.chunk(ctx, i)
				if st.err != nil {
					return
				}
			}
		}
		st.vals, st.err = a.f(i, deps)
	})
	return st.vals, st.err
}

// resolve computes all chunks of the array, distributing them over
// GOMAXPROCS worker goroutines.
func (a *Array) resolve(ctx context.Context) error {
	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > len(a.chunks) {
		nprocs = len(a.chunks)
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for i := pp; i < len(a.chunks); i += nprocs {
				if err := ctx.Err(); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
				if _, err := a.chunk(ctx, i); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
			}
		}(pp)
	}
	wg.Wait()
	return firstErr
}

// assemble concatenates the computed chunks into a single row-major slice.
// All chunks must already be computed.
func (a *Array) assemble() []float64 {
	out := make([]float64, a.Len())
	for i := range a.chunks {
		vals := a.chunks[i].vals
		if a.rows == 1 {
			copy(out[a.offs[i]:a.offs[i+1]], vals)
			continue
		}
		cs := a.offs[i+1] - a.offs[i]
		for r := 0; r < a.rows; r++ {
			copy(out[r*a.m+a.offs[i]:r*a.m+a.offs[i+1]], vals[r*cs:(r+1)*cs])
		}
	}
	return out
}

// Materialize forces evaluation of the deferred computation graph and
// returns the resulting values as a dense array.
func (a *Array) Materialize(ctx context.Context) (*sparse.DenseArray, error) {
	if err := a.resolve(ctx); err != nil {
		return nil, err
	}
	out := sparse.ZerosDense(a.shape...)
	copy(out.Elements, a.assemble())
	return out, nil
}

// MaterializeInt forces evaluation and returns the result as an integer
// array. Values are truncated toward zero.
func (a *Array) MaterializeInt(ctx context.Context) (*sparse.DenseArrayInt, error) {
	if err := a.resolve(ctx); err != nil {
		return nil, err
	}
	out := sparse.ZerosDenseInt(a.shape...)
	for i, v := range a.assemble() {
		out.Elements[i] = int(v)
	}
	return out, nil
}
