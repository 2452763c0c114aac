// Package grid provides the uniform spatial index that follows the camera
// viewport and answers bounded-radius neighbor queries.
package grid

import "math"

// Minimum values used to keep divisions finite during transient resizes.
const (
	MinCellSize = 0.0001
	MinZoom     = 0.0001
)

// View is a snapshot of the camera supplied every tick.
type View struct {
	Width, Height float64 // viewport size in screen pixels
	CX, CY        float64 // camera center in world space
	Zoom          float64 // screen pixels per world unit
}

// Bounds is an axis-aligned world rectangle.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Geometry maps world coordinates onto grid cells for the current view.
type Geometry struct {
	cellSize     float64
	paddingRatio float64
	bounds       Bounds
	cols, rows   int
}

// NewGeometry creates a 1x1 geometry at the origin. Call UpdateFromView to
// size it to a viewport.
func NewGeometry(cellSize, paddingRatio float64) *Geometry {
	g := &Geometry{
		cellSize:     math.Max(cellSize, MinCellSize),
		paddingRatio: paddingRatio,
	}
	g.bounds = Bounds{MaxX: g.cellSize, MaxY: g.cellSize}
	g.recomputeDims()
	return g
}

// UpdateFromView recomputes bounds and dimensions so the grid covers the
// visible area plus padding on every side.
func (g *Geometry) UpdateFromView(v View, paddingRatio float64) {
	g.paddingRatio = paddingRatio
	zoom := math.Max(v.Zoom, MinZoom)

	halfW := v.Width / (2 * zoom)
	halfH := v.Height / (2 * zoom)
	padding := math.Max(v.Width, v.Height) / zoom * paddingRatio

	g.bounds = Bounds{
		MinX: v.CX - halfW - padding,
		MinY: v.CY - halfH - padding,
		MaxX: v.CX + halfW + padding,
		MaxY: v.CY + halfH + padding,
	}
	g.recomputeDims()
}

// SetCellSize changes the cell size and recomputes dimensions for the
// current bounds.
func (g *Geometry) SetCellSize(size float64) {
	g.cellSize = math.Max(size, MinCellSize)
	g.recomputeDims()
}

func (g *Geometry) recomputeDims() {
	g.cols = max(1, int(math.Ceil(g.bounds.Width()/g.cellSize)))
	g.rows = max(1, int(math.Ceil(g.bounds.Height()/g.cellSize)))
}

// WorldToCell returns the cell containing (x, y). With clamp set the result
// always indexes a valid cell.
func (g *Geometry) WorldToCell(x, y float64, clamp bool) (col, row int) {
	col = int(math.Floor((x - g.bounds.MinX) / g.cellSize))
	row = int(math.Floor((y - g.bounds.MinY) / g.cellSize))
	if clamp {
		col = clampInt(col, 0, g.cols-1)
		row = clampInt(row, 0, g.rows-1)
	}
	return col, row
}

// CellToWorld returns the world position of a cell's min corner, or of its
// center when center is set.
func (g *Geometry) CellToWorld(col, row int, center bool) (x, y float64) {
	x = g.bounds.MinX + float64(col)*g.cellSize
	y = g.bounds.MinY + float64(row)*g.cellSize
	if center {
		x += g.cellSize / 2
		y += g.cellSize / 2
	}
	return x, y
}

// Contains reports whether (x, y) lies inside the grid bounds.
func (g *Geometry) Contains(x, y float64) bool {
	return x >= g.bounds.MinX && x < g.bounds.MaxX && y >= g.bounds.MinY && y < g.bounds.MaxY
}

// CellSize returns the edge length of one cell.
func (g *Geometry) CellSize() float64 { return g.cellSize }

// PaddingRatio returns the padding applied around the view.
func (g *Geometry) PaddingRatio() float64 { return g.paddingRatio }

// Bounds returns the covered world rectangle.
func (g *Geometry) Bounds() Bounds { return g.bounds }

// Dims returns the column and row counts, both at least 1.
func (g *Geometry) Dims() (cols, rows int) { return g.cols, g.rows }

// clampInt restricts x to [lo, hi].
func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
