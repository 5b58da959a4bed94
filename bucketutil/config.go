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

package bucketutil

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/bucket"
)

// Config specifies a resampling job.
type Config struct {
	// InFile is the NetCDF file holding the swath samples.
	InFile string

	// LonVar, LatVar, and DataVar are the names of the longitude,
	// latitude, and data variables in InFile.
	LonVar, LatVar, DataVar string

	// OutFile is the NetCDF file the gridded result is written to.
	OutFile string

	// Statistic is the aggregate to compute: "sum", "count", or
	// "average".
	Statistic string

	// FillValue is substituted for cells that receive no samples when
	// Statistic is "average". If unset, NaN is used.
	FillValue *float64

	// Grid specifies the target grid.
	Grid GridConfig
}

// GridConfig specifies the target grid of a resampling job.
type GridConfig struct {
	Name string

	// Proj is the Proj4 specification of the grid's spatial reference,
	// for example "+proj=lcc +lat_1=33 +lat_2=45 +lat_0=40 +lon_0=-97".
	Proj string

	// Nx and Ny are the numbers of grid columns and rows.
	Nx, Ny int

	// X0, Y0, X1, Y1 are the projected coordinates of the lower-left and
	// upper-right corners of the grid.
	X0, Y0, X1, Y1 float64
}

// GridDef creates the grid definition this configuration describes.
func (gc GridConfig) GridDef() (*bucket.GridDef, error) {
	sr, err := proj.Parse(gc.Proj)
	if err != nil {
		return nil, fmt.Errorf("bucketutil: problem parsing grid projection %q: %v", gc.Proj, err)
	}
	if gc.Nx <= 0 || gc.Ny <= 0 {
		return nil, fmt.Errorf("bucketutil: grid shape %d×%d is not positive", gc.Ny, gc.Nx)
	}
	return bucket.NewGridDef(gc.Name, gc.Nx, gc.Ny, gc.X0, gc.Y0, gc.X1, gc.Y1, sr), nil
}

// ReadConfig reads a TOML job configuration from path. Environment
// variables in the path and in the configured file names are expanded.
func ReadConfig(path string) (*Config, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("bucketutil: problem opening configuration file: %v", err)
	}
	defer f.Close()
	c := &Config{Statistic: "average"}
	if _, err := toml.DecodeReader(f, c); err != nil {
		return nil, fmt.Errorf("bucketutil: problem parsing configuration file: %v", err)
	}
	c.InFile = os.ExpandEnv(c.InFile)
	c.OutFile = os.ExpandEnv(c.OutFile)
	return c, nil
}
