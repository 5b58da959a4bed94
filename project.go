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
	"fmt"

	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/bucket/lazy"
)

// ProjectCoordinates applies the forward projection p to the paired
// longitude and latitude arrays and returns a deferred 2×N array where
// row 0 holds the projected x coordinates and row 1 the projected y
// coordinates, each rounded to the corresponding grid resolution.
// The projection is applied once per sample when the result (or anything
// derived from it) is materialized; projection errors propagate unchanged.
func ProjectCoordinates(lons, lats *lazy.Array, xRes, yRes float64, p proj.Transformer) (*lazy.Array, error) {
	if lons.Len() != lats.Len() {
		return nil, fmt.Errorf("bucket: longitude and latitude lengths differ: %d != %d",
			lons.Len(), lats.Len())
	}
	return lazy.NewOp(2, []*lazy.Array{lons, lats}, func(_ int, deps [][]float64) ([]float64, error) {
		lon, lat := deps[0], deps[1]
		out := make([]float64, 2*len(lon))
		for j := range lon {
			x, y, err := p(lon[j], lat[j])
			if err != nil {
				return nil, err
			}
			out[j] = RoundToResolution(x, xRes)
			out[len(lon)+j] = RoundToResolution(y, yRes)
		}
		return out, nil
	})
}
