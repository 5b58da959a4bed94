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
	"github.com/spatialmodel/bucket/lazy"
)

// scatter builds the deferred aggregation from bucket indices to a
// grid-shaped accumulator. With nil weights it counts the samples landing
// in each cell; otherwise it sums their weights. Samples carrying the
// sentinel index (or any index outside the grid) are collected in a
// dedicated overflow bin that is dropped from the result, so they never
// collide with a real cell.
func scatter(grid *GridDef, idxs *Indices, weights *lazy.Array) (*lazy.Array, error) {
	ny, nx := grid.Shape()
	nbins := ny * nx

	// Flatten the index pair into linear bucket ids in [0, nbins], where
	// nbins is the discard bin.
	linear, err := lazy.Zip(idxs.Y, idxs.X, func(row, col float64) float64 {
		if !(row >= 0 && row < float64(ny) && col >= 0 && col < float64(nx)) {
			return float64(nbins)
		}
		return row*float64(nx) + col
	})
	if err != nil {
		return nil, err
	}

	hist, err := lazy.Bincount(nbins+1, linear, weights)
	if err != nil {
		return nil, err
	}
	return hist.Head(nbins).Reshape(ny, nx)
}
