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
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// GridDef specifies the regular grid that samples are aggregated to.
// X0, Y0 are the projected coordinates of the lower-left corner of the grid
// and X1, Y1 of the upper-right corner. Row 0 of the grid is at the top
// (maximum y). A GridDef must not be modified after first use.
type GridDef struct {
	Name   string
	Nx, Ny int
	X0, Y0 float64
	X1, Y1 float64

	// SR is the spatial reference of the grid.
	SR *proj.SR

	projOnce sync.Once
	proj     proj.Transformer
	projErr  error
}

// NewGridDef creates a new grid definition with nx columns and ny rows
// covering the projected-coordinate extent (x0, y0, x1, y1) in the spatial
// reference sr.
func NewGridDef(name string, nx, ny int, x0, y0, x1, y1 float64, sr *proj.SR) *GridDef {
	return &GridDef{
		Name: name,
		Nx:   nx, Ny: ny,
		X0: x0, Y0: y0,
		X1: x1, Y1: y1,
		SR: sr,
	}
}

// Shape returns the number of rows and columns in the grid.
func (g *GridDef) Shape() (ny, nx int) { return g.Ny, g.Nx }

// Extent returns the projected-coordinate extent of the grid.
func (g *GridDef) Extent() (x0, y0, x1, y1 float64) {
	return g.X0, g.Y0, g.X1, g.Y1
}

// Resolution returns the size of a grid cell in projected coordinates.
func (g *GridDef) Resolution() (dx, dy float64) {
	return (g.X1 - g.X0) / float64(g.Nx), (g.Y1 - g.Y0) / float64(g.Ny)
}

// Bounds returns the bounding box of the grid extent.
func (g *GridDef) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.X0, Y: g.Y0},
		Max: geom.Point{X: g.X1, Y: g.Y1},
	}
}

// Projector returns the forward transformation from geographic
// (longitude, latitude) coordinates in degrees to the grid's projected
// coordinate system. The transformation is created once and reused.
func (g *GridDef) Projector() (proj.Transformer, error) {
	g.projOnce.Do(func() {
		longlat, err := proj.Parse("+proj=longlat")
		if err != nil {
			g.projErr = err
			return
		}
		g.proj, g.projErr = longlat.NewTransform(g.SR)
	})
	return g.proj, g.projErr
}
