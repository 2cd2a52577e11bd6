// Package raster provides an in-memory single-band float grid with
// affine placement, plus reading and writing of ESRI ASCII grid files.
// Bands and DEMs are cached on disk in that format.
package raster

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultNoData is used when a grid file carries no NODATA_VALUE header.
const DefaultNoData = -9999

// Grid is a single-band raster. Data is row-major with row 0 at the
// northern edge, matching ESRI ASCII grid file order. Xll and Yll are
// the coordinates of the lower-left corner in the projected CRS.
type Grid struct {
	Cols, Rows int
	Xll, Yll   float64
	CellSize   float64
	NoData     float64
	Data       []float64
}

// New creates a grid of the given shape with every cell set to nodata.
func New(cols, rows int, xll, yll, cellSize float64) *Grid {
	g := &Grid{
		Cols:     cols,
		Rows:     rows,
		Xll:      xll,
		Yll:      yll,
		CellSize: cellSize,
		NoData:   DefaultNoData,
		Data:     make([]float64, cols*rows),
	}
	for i := range g.Data {
		g.Data[i] = g.NoData
	}
	return g
}

// Value returns the cell value at (col, row) and whether it is valid
// data. Nodata and non-finite cells report ok=false.
func (g *Grid) Value(col, row int) (float64, bool) {
	v := g.Data[row*g.Cols+col]
	if v == g.NoData || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Set stores a value at (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Cols+col] = v
}

// SetNoData marks the cell at (col, row) as nodata.
func (g *Grid) SetNoData(col, row int) {
	g.Data[row*g.Cols+col] = g.NoData
}

// CellCenter returns the projected coordinates of the center of the
// cell at (col, row).
func (g *Grid) CellCenter(col, row int) orb.Point {
	x := g.Xll + (float64(col)+0.5)*g.CellSize
	y := g.Yll + (float64(g.Rows-row)-0.5)*g.CellSize
	return orb.Point{x, y}
}

// Bound returns the grid extent as an orb bound.
func (g *Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.Xll, g.Yll},
		Max: orb.Point{
			g.Xll + float64(g.Cols)*g.CellSize,
			g.Yll + float64(g.Rows)*g.CellSize,
		},
	}
}

// CellArea returns the ground area of one cell in square meters. The
// CRS is projected, so the area is uniform across the grid.
func (g *Grid) CellArea() float64 {
	return g.CellSize * g.CellSize
}

const alignEpsilon = 1e-6

// AlignedWith reports whether two grids are co-registered: same shape,
// same origin and same cell size.
func (g *Grid) AlignedWith(o *Grid) bool {
	return g.Cols == o.Cols && g.Rows == o.Rows &&
		math.Abs(g.Xll-o.Xll) < alignEpsilon &&
		math.Abs(g.Yll-o.Yll) < alignEpsilon &&
		math.Abs(g.CellSize-o.CellSize) < alignEpsilon
}
