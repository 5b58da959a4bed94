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

package lazy

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/ctessum/sparse"
)

const testTolerance = 1e-10

func different(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) != math.IsNaN(b)
	}
	return math.Abs(a-b) > testTolerance
}

func denseFrom(shape []int, vals []float64) *sparse.DenseArray {
	d := sparse.ZerosDense(shape...)
	copy(d.Elements, vals)
	return d
}

func TestFromDenseMaterialize(t *testing.T) {
	d := denseFrom([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	a := FromDenseChunked(d, 2)
	if a.NChunks() != 3 {
		t.Errorf("expected 3 chunks, got %d", a.NChunks())
	}
	if a.Len() != 6 {
		t.Errorf("expected 6 values, got %d", a.Len())
	}
	result, err := a.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Shape[0] != 2 || result.Shape[1] != 3 {
		t.Errorf("wrong shape: %v", result.Shape)
	}
	for i, v := range d.Elements {
		if different(result.Elements[i], v) {
			t.Errorf("element %d: expected %g, got %g", i, v, result.Elements[i])
		}
	}
}

func TestMapDeferred(t *testing.T) {
	d := denseFrom([]int{5}, []float64{1, 2, 3, 4, 5})
	a := FromDenseChunked(d, 2)
	var calls int64
	doubled := a.Map(func(v float64) float64 {
		atomic.AddInt64(&calls, 1)
		return 2 * v
	})
	if n := atomic.LoadInt64(&calls); n != 0 {
		t.Fatalf("graph building evaluated the array %d times", n)
	}
	result, err := doubled.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt64(&calls); n != 5 {
		t.Errorf("expected 5 evaluations, got %d", n)
	}
	for i, v := range d.Elements {
		if different(result.Elements[i], 2*v) {
			t.Errorf("element %d: expected %g, got %g", i, 2*v, result.Elements[i])
		}
	}

	// Two more consumers of the same node: the values must not be
	// recomputed.
	if _, err := doubled.Materialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	plusOne := doubled.Map(func(v float64) float64 { return v + 1 })
	if _, err := plusOne.Materialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt64(&calls); n != 5 {
		t.Errorf("values were recomputed: %d evaluations", n)
	}
}

func TestZipAlignment(t *testing.T) {
	a := FromSlice([]float64{1, 2, 3})
	b := FromSlice([]float64{1, 2, 3, 4})
	if _, err := Zip(a, b, func(x, y float64) float64 { return x + y }); err == nil {
		t.Error("expected an error for arrays of different lengths")
	}

	d := denseFrom([]int{4}, []float64{1, 2, 3, 4})
	c := FromDenseChunked(d, 3)
	e := FromDenseChunked(d, 2)
	if _, err := Zip(c, e, func(x, y float64) float64 { return x + y }); err == nil {
		t.Error("expected an error for mismatched chunk boundaries")
	}

	f := FromSlice([]float64{10, 20, 30})
	sum, err := Zip(a, f, func(x, y float64) float64 { return x + y })
	if err != nil {
		t.Fatal(err)
	}
	result, err := sum.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{11, 22, 33}
	for i, v := range want {
		if different(result.Elements[i], v) {
			t.Errorf("element %d: expected %g, got %g", i, v, result.Elements[i])
		}
	}
}

func TestStackedRows(t *testing.T) {
	d := denseFrom([]int{5}, []float64{1, 2, 3, 4, 5})
	src := FromDenseChunked(d, 2)
	pair, err := NewOp(2, []*Array{src}, func(_ int, deps [][]float64) ([]float64, error) {
		in := deps[0]
		out := make([]float64, 2*len(in))
		for j, v := range in {
			out[j] = v
			out[len(in)+j] = 2 * v
		}
		return out, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	shape := pair.Shape()
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 5 {
		t.Fatalf("wrong shape: %v", shape)
	}

	result, err := pair.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3, 4, 5, 2, 4, 6, 8, 10}
	for i, v := range want {
		if different(result.Elements[i], v) {
			t.Errorf("element %d: expected %g, got %g", i, v, result.Elements[i])
		}
	}

	row1, err := pair.Row(1).Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []float64{2, 4, 6, 8, 10} {
		if different(row1.Elements[i], v) {
			t.Errorf("row 1 element %d: expected %g, got %g", i, v, row1.Elements[i])
		}
	}
}

func TestBincount(t *testing.T) {
	ids := FromDenseChunked(denseFrom([]int{8},
		[]float64{0, 1, 1, 3, 0, 3, 3, 2}), 3)
	hist, err := Bincount(4, ids, nil)
	if err != nil {
		t.Fatal(err)
	}
	result, err := hist.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 2, 1, 3}
	for i, v := range want {
		if different(result.Elements[i], v) {
			t.Errorf("bin %d: expected %g, got %g", i, v, result.Elements[i])
		}
	}
}

func TestBincountWeighted(t *testing.T) {
	ids := FromDenseChunked(denseFrom([]int{6},
		[]float64{0, 2, 2, 1, 0, 2}), 2)
	weights := FromDenseChunked(denseFrom([]int{6},
		[]float64{1, 10, 100, 5, 3, 1000}), 2)
	hist, err := Bincount(3, ids, weights)
	if err != nil {
		t.Fatal(err)
	}
	result, err := hist.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{4, 5, 1110}
	for i, v := range want {
		if different(result.Elements[i], v) {
			t.Errorf("bin %d: expected %g, got %g", i, v, result.Elements[i])
		}
	}
}

func TestBincountDiscards(t *testing.T) {
	ids := FromSlice([]float64{0, -1, 5, math.NaN(), 1, 4, math.Inf(1)})
	hist, err := Bincount(4, ids, nil)
	if err != nil {
		t.Fatal(err)
	}
	result, err := hist.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Only ids 0 and 1 are in range.
	want := []float64{1, 1, 0, 0}
	for i, v := range want {
		if different(result.Elements[i], v) {
			t.Errorf("bin %d: expected %g, got %g", i, v, result.Elements[i])
		}
	}
}

func TestBincountMismatchedWeights(t *testing.T) {
	ids := FromSlice([]float64{0, 1, 2})
	weights := FromSlice([]float64{1, 1})
	if _, err := Bincount(3, ids, weights); err == nil {
		t.Error("expected an error for mismatched weights")
	}
}

func TestHeadReshape(t *testing.T) {
	a := FromSlice([]float64{1, 2, 3, 4, 5, 6, 7})
	head := a.Head(6)
	grid, err := head.Reshape(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	result, err := grid.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Shape[0] != 2 || result.Shape[1] != 3 {
		t.Errorf("wrong shape: %v", result.Shape)
	}
	for i, v := range []float64{1, 2, 3, 4, 5, 6} {
		if different(result.Elements[i], v) {
			t.Errorf("element %d: expected %g, got %g", i, v, result.Elements[i])
		}
	}

	if _, err := a.Head(6).Reshape(4, 2); err == nil {
		t.Error("expected an error for a reshape that changes the value count")
	}
}

func TestMaterializeInt(t *testing.T) {
	a := FromSlice([]float64{0, 1, 5, 100})
	result, err := a.MaterializeInt(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []int{0, 1, 5, 100} {
		if result.Elements[i] != v {
			t.Errorf("element %d: expected %d, got %d", i, v, result.Elements[i])
		}
	}
}

// TestBincountManyChunks checks that the partial-histogram merge gives the
// same result no matter how many chunks the work is split into.
func TestBincountManyChunks(t *testing.T) {
	const n = 10000
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i % 7)
	}
	d := denseFrom([]int{n}, vals)
	for _, chunkLen := range []int{1 << 16, 100, 37} {
		ids := FromDenseChunked(d, chunkLen)
		hist, err := Bincount(7, ids, nil)
		if err != nil {
			t.Fatal(err)
		}
		result, err := hist.Materialize(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		var total float64
		for bin, v := range result.Elements {
			if different(v, float64(n/7)+boolToFloat(bin < n%7)) {
				t.Errorf("chunkLen %d bin %d: got %g", chunkLen, bin, v)
			}
			total += v
		}
		if different(total, n) {
			t.Errorf("chunkLen %d: total %g != %d", chunkLen, total, n)
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
