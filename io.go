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
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// ReadVar reads variable name from the NetCDF data in r. Float32 data is
// widened to float64.
func ReadVar(r cdf.ReaderWriterAt, name string) (*sparse.DenseArray, error) {
	ff, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("bucket: problem opening netcdf data: %v", err)
	}
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("bucket: variable %s is not in the netcdf data", name)
	}
	rr := ff.Reader(name, nil, nil)
	buf := rr.Zero(-1)
	if _, err := rr.Read(buf); err != nil {
		return nil, fmt.Errorf("bucket: problem reading netcdf variable %s: %v", name, err)
	}
	data := sparse.ZerosDense(dims...)
	switch v := buf.(type) {
	case []float32:
		for i, val := range v {
			data.Elements[i] = float64(val)
		}
	case []float64:
		copy(data.Elements, v)
	default:
		return nil, fmt.Errorf("bucket: netcdf variable %s has unsupported type %T", name, buf)
	}
	return data, nil
}

// WriteGrid writes gridded aggregation results to the NetCDF file w. Each
// entry in vars must have the shape of the grid. The grid geometry is
// stored in global attributes.
func WriteGrid(w *os.File, grid *GridDef, vars map[string]*sparse.DenseArray) error {
	ny, nx := grid.Shape()
	dx, dy := grid.Resolution()
	h := cdf.NewHeader([]string{"y", "x"}, []int{ny, nx})
	h.AddAttribute("", "comment", "bucket resampling output")
	h.AddAttribute("", "grid_name", grid.Name)
	h.AddAttribute("", "x0", []float64{grid.X0})
	h.AddAttribute("", "y0", []float64{grid.Y0})
	h.AddAttribute("", "dx", []float64{dx})
	h.AddAttribute("", "dy", []float64{dy})
	h.AddAttribute("", "nx", []int32{int32(nx)})
	h.AddAttribute("", "ny", []int32{int32(ny)})

	// Sort the names so they write in the same order every time.
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		h.AddVariable(name, []string{"y", "x"}, []float32{0})
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("bucket: problem creating netcdf file: %v", err)
	}
	for _, name := range names {
		if err := writeNCF(f, name, vars[name]); err != nil {
			return fmt.Errorf("bucket: problem writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data32)
	return err
}
