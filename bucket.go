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

// Package bucket aggregates irregularly distributed geolocated samples onto
// the cells of a regular projected grid. For each grid cell it computes
// statistics (sum, count, average) over the samples whose projected
// coordinates fall inside the cell. All aggregations are deferred: they
// build a computation graph over chunked arrays which is evaluated in
// parallel only when the caller materializes the result.
package bucket

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/spatialmodel/bucket/lazy"
)

// Data is a numeric data array input to an aggregation. Labeled wrappers
// are unwrapped at this boundary; their metadata takes no part in the
// aggregation.
type Data interface {
	Array() *lazy.Array
}

// Variable attaches descriptive metadata to a data array.
type Variable struct {
	Name        string
	Units       string
	Description string
	Data        *lazy.Array
}

// Array returns the underlying data array, discarding the metadata.
func (v *Variable) Array() *lazy.Array { return v.Data }

// Resampler aggregates swath samples onto the cells of a single grid.
// It memoizes computed bucket indices so that repeated aggregations over
// the same coordinate arrays reproject them only once. A Resampler is safe
// for concurrent use.
type Resampler struct {
	Grid *GridDef

	// CacheSize is the maximum number of coordinate-array pairs for which
	// computed bucket indices are retained.
	CacheSize int

	cacheOnce sync.Once
	cache     *requestcache.Cache
}

// NewResampler creates a resampler for the given grid.
func NewResampler(grid *GridDef) *Resampler {
	return &Resampler{Grid: grid, CacheSize: 100}
}

type indexRequest struct {
	lons, lats *lazy.Array
}

// Indices returns the bucket indices for the given coordinate arrays,
// reusing previously computed indices when the same arrays are passed
// again. The cache key is the identity of the array objects, not their
// contents, so the arrays must not be modified between calls. The cache is
// an optimization only; recomputing indices for the same inputs always
// yields the same result.
func (r *Resampler) Indices(lons, lats *lazy.Array) (*Indices, error) {
	r.cacheOnce.Do(func() {
		r.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			req := request.(indexRequest)
			return BucketIndices(r.Grid, req.lons, req.lats)
		}, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(r.CacheSize))
	})
	req := r.cache.NewRequest(context.TODO(), indexRequest{lons: lons, lats: lats},
		fmt.Sprintf("%p_%p_%p", r.Grid, lons, lats))
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*Indices), nil
}

func (r *Resampler) indicesOr(idxs *Indices, lons, lats *lazy.Array) (*Indices, error) {
	if idxs != nil {
		return idxs, nil
	}
	return r.Indices(lons, lats)
}

// Sum returns the deferred per-cell sum of data over the grid. If idxs is
// nil, bucket indices are obtained from the resampler's cache.
func (r *Resampler) Sum(data Data, lons, lats *lazy.Array, idxs *Indices) (*lazy.Array, error) {
	idxs, err := r.indicesOr(idxs, lons, lats)
	if err != nil {
		return nil, err
	}
	return scatter(r.Grid, idxs, data.Array())
}

// Count returns the deferred per-cell number of samples over the grid. If
// idxs is nil, bucket indices are obtained from the resampler's cache.
func (r *Resampler) Count(lons, lats *lazy.Array, idxs *Indices) (*lazy.Array, error) {
	idxs, err := r.indicesOr(idxs, lons, lats)
	if err != nil {
		return nil, err
	}
	return scatter(r.Grid, idxs, nil)
}

// Average returns the deferred per-cell average of data over the grid,
// computed as sum divided by count with both statistics sharing one set of
// bucket indices. Cells that received no samples are set to fillValue;
// pass math.NaN() for the conventional missing-value marker. If idxs is
// nil, bucket indices are obtained from the resampler's cache.
func (r *Resampler) Average(data Data, lons, lats *lazy.Array, idxs *Indices, fillValue float64) (*lazy.Array, error) {
	idxs, err := r.indicesOr(idxs, lons, lats)
	if err != nil {
		return nil, err
	}
	sum, err := scatter(r.Grid, idxs, data.Array())
	if err != nil {
		return nil, err
	}
	count, err := scatter(r.Grid, idxs, nil)
	if err != nil {
		return nil, err
	}
	avg, err := lazy.Zip(sum, count, func(s, c float64) float64 {
		if c == 0 {
			return fillValue
		}
		return s / c
	})
	if err != nil {
		return nil, err
	}
	ny, nx := r.Grid.Shape()
	return avg.Reshape(ny, nx)
}
