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
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Bincount returns a deferred 1-D histogram with nbins bins over ids, which
// must hold integer-valued bin identifiers in [0, nbins). If weights is
// non-nil it must be aligned with ids and each sample contributes its
// weight to its bin; otherwise each sample counts 1. Samples with
// out-of-range or non-finite ids are ignored.
//
// Each chunk of ids is tallied into its own partial histogram and the
// partials are summed. Addition of partials is associative and commutative,
// so the order in which chunks are evaluated cannot affect the result.
func Bincount(nbins int, ids, weights *Array) (*Array, error) {
	if nbins < 1 {
		return nil, fmt.Errorf("lazy: bincount needs at least one bin, got %d", nbins)
	}
	deps := []*Array{ids}
	if weights != nil {
		if err := alignedWith(ids, weights); err != nil {
			return nil, fmt.Errorf("lazy: bincount weights: %v", err)
		}
		deps = append(deps, weights)
	}

	// Per-chunk partial histograms: chunk i holds the histogram of chunk i
	// of ids.
	nchunks := len(ids.chunks)
	partials := &Array{
		shape:  []int{nchunks, nbins},
		m:      nchunks * nbins,
		rows:   1,
		offs:   make([]int, nchunks+1),
		deps:   deps,
		chunks: make([]chunkState, nchunks),
	}
	for i := 1; i <= nchunks; i++ {
		partials.offs[i] = i * nbins
	}
	partials.f = func(i int, deps [][]float64) ([]float64, error) {
		hist := make([]float64, nbins)
		idvals := deps[0]
		for j, v := range idvals {
			if math.IsNaN(v) || v < 0 || v >= float64(nbins) {
				continue
			}
			w := 1.0
			if len(deps) > 1 {
				w = deps[1][j]
			}
			hist[int(v)] += w
		}
		return hist, nil
	}

	merged := newGather([]int{nbins}, nbins, []*Array{partials}, func(_ int, deps [][]float64) ([]float64, error) {
		out := make([]float64, nbins)
		all := deps[0]
		for k := 0; k*nbins < len(all); k++ {
			floats.Add(out, all[k*nbins:(k+1)*nbins])
		}
		return out, nil
	})
	return merged, nil
}
