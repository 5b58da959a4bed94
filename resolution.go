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

// RoundToResolution rounds val to the nearest multiple of resolution,
// making coordinate comparisons at grid resolution numerically stable.
// NaN values stay NaN.
func RoundToResolution(val, resolution float64) float64 {
	return resolution * math.Round(val/resolution)
}

// RoundSliceToResolution returns a new slice holding vals rounded to the
// nearest multiple of resolution.
func RoundSliceToResolution(vals []float64, resolution float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = RoundToResolution(v, resolution)
	}
	return out
}

// RoundArrayToResolution returns a deferred rounding of a to the nearest
// multiple of resolution. Like all deferred operations, it does not force
// evaluation of a.
func RoundArrayToResolution(a *lazy.Array, resolution float64) *lazy.Array {
	return a.Map(func(v float64) float64 {
		return RoundToResolution(v, resolution)
	})
}
