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

package bucket

import (
	"math"

	"github.com/spatialmodel/bucket/lazy"
)

// Indices holds deferred bucket indices for a set of samples: X are grid
// column indices and Y are grid row indices. Samples that fall outside the
// grid, or whose coordinates are not finite, hold the grid's sentinel value
// (Ny*Nx) in both arrays.
type Indices struct {
	X, Y *lazy.Array
}

// Sentinel returns the index value assigned to discarded samples of g:
// one past the last valid flattened grid cell.
func (g *GridDef) Sentinel() int { return g.Ny * g.Nx }

// BucketIndices computes the grid cell each sample falls in. The
// coordinate arrays may have any shape; they are treated as flat, paired
// by position. The returned indices are deferred; this call performs no
// evaluation.
func BucketIndices(grid *GridDef, lons, lats *lazy.Array) (*Indices, error) {
	xRes, yRes := grid.Resolution()
	p, err := grid.Projector()
	if err != nil {
		return nil, err
	}
	xy, err := ProjectCoordinates(lons, lats, xRes, yRes, p)
	if err != nil {
		return nil, err
	}

	nx, ny := float64(grid.Nx), float64(grid.Ny)
	x0, _, _, y1 := grid.Extent()
	sentinel := float64(grid.Sentinel())
	pair, err := lazy.NewOp(2, []*lazy.Array{xy}, func(_ int, deps [][]float64) ([]float64, error) {
		in := deps[0]
		cs := len(in) / 2
		out := make([]float64, len(in))
		for j := 0; j < cs; j++ {
			x, y := in[j], in[cs+j]
			col := math.Floor((x - x0) / xRes)
			row := math.Floor((y1 - y) / yRes)
			// The comparison is false for NaN, so non-finite
			// coordinates are discarded along with out-of-grid ones.
			if !(col >= 0 && col < nx && row >= 0 && row < ny) {
				col, row = sentinel, sentinel
			}
			out[j] = col
			out[cs+j] = row
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &Indices{X: pair.Row(0), Y: pair.Row(1)}, nil
}
