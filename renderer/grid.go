package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/camera"
	"github.com/pthm-cable/swarm/grid"
	"github.com/pthm-cable/swarm/particle"
)

// minLineSpacing is the on-screen cell size below which grid lines are skipped.
const minLineSpacing = 4

// GridOverlay draws the spatial grid: occupancy shading, cell lines and
// the grid bounds.
type GridOverlay struct {
	LineColor   rl.Color
	FillColor   rl.Color // alpha scales with occupancy
	BoundsColor rl.Color
	Saturation  int // occupancy that gets full FillColor alpha
}

// NewGridOverlay creates a grid overlay with the default colors.
func NewGridOverlay() *GridOverlay {
	return &GridOverlay{
		LineColor:   rl.Color{R: 60, G: 70, B: 80, A: 120},
		FillColor:   rl.Color{R: 80, G: 160, B: 220, A: 140},
		BoundsColor: rl.Color{R: 220, G: 200, B: 80, A: 200},
		Saturation:  8,
	}
}

// Draw renders g through cam.
func (o *GridOverlay) Draw(g *grid.SpatialGrid, cam *camera.Camera) {
	geom := g.Geometry()
	cols, rows := geom.Dims()
	cellPx := float32(geom.CellSize() * cam.Zoom)

	for row := range rows {
		for col := range cols {
			n := len(g.Cell(col, row))
			if n == 0 {
				continue
			}
			wx, wy := geom.CellToWorld(col, row, false)
			sx, sy := cam.WorldToScreen(wx, wy)
			fill := o.FillColor
			fill.A = uint8(int(o.FillColor.A) * min(n, o.Saturation) / max(1, o.Saturation))
			rl.DrawRectangleV(
				rl.Vector2{X: float32(sx), Y: float32(sy)},
				rl.Vector2{X: cellPx, Y: cellPx},
				fill,
			)
		}
	}

	b := geom.Bounds()
	x0, y0 := cam.WorldToScreen(b.MinX, b.MinY)
	x1, y1 := cam.WorldToScreen(b.MaxX, b.MaxY)

	if cellPx >= minLineSpacing {
		for col := 1; col < cols; col++ {
			x := float32(x0) + float32(col)*cellPx
			rl.DrawLineV(rl.Vector2{X: x, Y: float32(y0)}, rl.Vector2{X: x, Y: float32(y1)}, o.LineColor)
		}
		for row := 1; row < rows; row++ {
			y := float32(y0) + float32(row)*cellPx
			rl.DrawLineV(rl.Vector2{X: float32(x0), Y: y}, rl.Vector2{X: float32(x1), Y: y}, o.LineColor)
		}
	}

	rl.DrawRectangleLinesEx(rl.Rectangle{
		X: float32(x0), Y: float32(y0),
		Width: float32(x1 - x0), Height: float32(y1 - y0),
	}, 2, o.BoundsColor)
}

// DrawQuery outlines a query disc and the particles it returned.
func DrawQuery(store *particle.Store, cam *camera.Camera, center r2.Vec, radius float64, res grid.QueryResult) {
	sx, sy := cam.WorldToScreen(center.X, center.Y)
	ring := rl.Color{R: 255, G: 255, B: 255, A: 180}
	if res.Truncated {
		ring = rl.Color{R: 255, G: 120, B: 80, A: 200}
	}
	rl.DrawCircleLines(int32(sx), int32(sy), float32(radius*cam.Zoom), ring)

	for _, i := range res.Indices {
		p := store.At(i)
		px, py := cam.WorldToScreen(p.Position.X, p.Position.Y)
		rl.DrawCircleLines(int32(px), int32(py), float32(p.Size*cam.Zoom)+2, rl.Yellow)
	}
}
