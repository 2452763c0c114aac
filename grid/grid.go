package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/particle"
)

// ErrInvalidCellSize is returned for non-positive or non-finite cell sizes.
var ErrInvalidCellSize = errors.New("grid: cell size must be positive and finite")

// Options tunes grid behavior. Zero values fall back to the defaults.
type Options struct {
	PaddingRatio   float64 // extra coverage around the view, as a fraction of the larger viewport side
	MaxPoolSize    int     // recycled cell buffers kept across reconfigurations
	ZoomHysteresis float64 // zoom change that forces a reconfigure
}

// DefaultOptions returns the stock grid options.
func DefaultOptions() Options {
	return Options{
		PaddingRatio:   0.1,
		MaxPoolSize:    DefaultMaxPoolSize,
		ZoomHysteresis: 0.1,
	}
}

// QueryResult is the answer to a disc-intersection query.
type QueryResult struct {
	Indices   []int
	Truncated bool // more matches existed than maxResults
}

// SpatialGrid buckets particle indices into uniform cells over the camera
// view. It holds indices into a particle.Store, never copies of particles.
type SpatialGrid struct {
	store *particle.Store
	geom  *Geometry
	opts  Options
	view  View // view at the last reconfigure

	cells    [][]int32 // row-major, len = cols*rows
	occupied []int32   // cells that received an entry since the last clear
	cellOf   []int32   // particle index -> flat cell index, -1 when absent
	count    int
	maxSize  float64 // largest Size inserted since the last clear

	pool *cellPool
}

// New creates a grid over store sized for view.
func New(store *particle.Store, cellSize float64, view View, opts Options) (*SpatialGrid, error) {
	if err := validateCellSize(cellSize); err != nil {
		return nil, err
	}
	def := DefaultOptions()
	if opts.PaddingRatio < 0 {
		opts.PaddingRatio = 0
	}
	if opts.MaxPoolSize == 0 {
		opts.MaxPoolSize = def.MaxPoolSize
	}
	if opts.ZoomHysteresis <= 0 {
		opts.ZoomHysteresis = def.ZoomHysteresis
	}

	g := &SpatialGrid{
		store: store,
		geom:  NewGeometry(cellSize, opts.PaddingRatio),
		opts:  opts,
		view:  view,
		pool:  newCellPool(opts.MaxPoolSize),
	}
	g.reconfigure()
	return g, nil
}

func validateCellSize(size float64) error {
	if !(size > 0) || math.IsInf(size, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidCellSize, size)
	}
	return nil
}

// reconfigure resizes the geometry for the current view and empties the grid.
func (g *SpatialGrid) reconfigure() {
	g.geom.UpdateFromView(g.view, g.opts.PaddingRatio)
	g.resizeCells()
}

// resizeCells matches the cell table to the geometry, recycling buffers.
func (g *SpatialGrid) resizeCells() {
	cols, rows := g.geom.Dims()
	n := cols * rows
	if n == len(g.cells) {
		g.Clear()
		return
	}
	for i, buf := range g.cells {
		g.pool.put(buf)
		g.cells[i] = nil
	}
	if cap(g.cells) >= n {
		g.cells = g.cells[:n]
	} else {
		g.cells = make([][]int32, n)
	}
	g.occupied = g.occupied[:0]
	g.resetSideTable()
	g.count = 0
	g.maxSize = 0
}

func (g *SpatialGrid) resetSideTable() {
	for i := range g.cellOf {
		g.cellOf[i] = -1
	}
}

// Insert places particle i into its clamped cell. Removed particles (mass 0)
// are ignored; inserting an already present index moves it.
func (g *SpatialGrid) Insert(i int) {
	if i < 0 || i >= g.store.Len() {
		return
	}
	p := g.store.At(i)
	if p.Mass == 0 {
		return
	}

	for len(g.cellOf) < g.store.Len() {
		g.cellOf = append(g.cellOf, -1)
	}
	if prev := g.cellOf[i]; prev >= 0 {
		g.detach(i, prev)
	}

	col, row := g.geom.WorldToCell(p.Position.X, p.Position.Y, true)
	cols, _ := g.geom.Dims()
	idx := int32(row*cols + col)

	cell := g.cells[idx]
	if cap(cell) == 0 {
		cell = g.pool.get()
	}
	if len(cell) == 0 {
		g.occupied = append(g.occupied, idx)
	}
	g.cells[idx] = append(cell, int32(i))
	g.cellOf[i] = idx
	g.count++
	if p.Size > g.maxSize {
		g.maxSize = p.Size
	}
}

// detach removes index i from cell idx.
func (g *SpatialGrid) detach(i int, idx int32) {
	cell := g.cells[idx]
	for k, v := range cell {
		if int(v) == i {
			copy(cell[k:], cell[k+1:])
			g.cells[idx] = cell[:len(cell)-1]
			g.count--
			break
		}
	}
	g.cellOf[i] = -1
}

// Clear empties every cell, keeping buffer capacity.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.occupied = g.occupied[:0]
	g.resetSideTable()
	g.count = 0
	g.maxSize = 0
}

// ClearIncremental empties only the cells that were filled since the last
// clear. Cheaper than Clear when occupancy is sparse.
func (g *SpatialGrid) ClearIncremental() {
	for _, idx := range g.occupied {
		for _, i := range g.cells[idx] {
			if int(i) < len(g.cellOf) {
				g.cellOf[i] = -1
			}
		}
		g.cells[idx] = g.cells[idx][:0]
	}
	g.occupied = g.occupied[:0]
	g.count = 0
	g.maxSize = 0
}

// Rebuild clears the grid and inserts every live particle of the store.
func (g *SpatialGrid) Rebuild() {
	g.ClearIncremental()
	items := g.store.Items()
	for i := range items {
		if items[i].Mass != 0 {
			g.Insert(i)
		}
	}
}

// GetParticles appends to a new slice the particles strictly closer than
// radius to point. Slots removed since the last rebuild are skipped.
// maxResults <= 0 means unlimited.
func (g *SpatialGrid) GetParticles(point r2.Vec, radius float64, maxResults int) []int {
	return g.GetParticlesInto(nil, point, radius, maxResults)
}

// GetParticlesInto is GetParticles appending into dst. Reuse dst across
// calls to avoid allocations.
func (g *SpatialGrid) GetParticlesInto(dst []int, point r2.Vec, radius float64, maxResults int) []int {
	if !(radius > 0) {
		return dst
	}
	colMin, colMax, rowMin, rowMax := g.cellRange(point, radius)
	cols, _ := g.geom.Dims()
	radiusSq := radius * radius
	items := g.store.Items()
	found := 0

	for row := rowMin; row <= rowMax; row++ {
		for col := colMin; col <= colMax; col++ {
			for _, i := range g.cells[row*cols+col] {
				if items[i].Mass == 0 {
					continue
				}
				d := r2.Sub(items[i].Position, point)
				if d.X*d.X+d.Y*d.Y >= radiusSq {
					continue
				}
				dst = append(dst, int(i))
				found++
				if maxResults > 0 && found >= maxResults {
					return dst
				}
			}
		}
	}
	return dst
}

// GetParticlesInRadius returns the particles whose disc intersects the query
// disc: distance <= radius + particle.Size, boundary included. Slots removed
// since the last rebuild are skipped.
func (g *SpatialGrid) GetParticlesInRadius(center r2.Vec, radius float64, maxResults int) QueryResult {
	var res QueryResult
	res.Indices, res.Truncated = g.getInRadius(nil, center, radius, maxResults)
	return res
}

// GetParticlesInRadiusInto is GetParticlesInRadius appending into dst.
func (g *SpatialGrid) GetParticlesInRadiusInto(dst []int, center r2.Vec, radius float64, maxResults int) ([]int, bool) {
	return g.getInRadius(dst, center, radius, maxResults)
}

func (g *SpatialGrid) getInRadius(dst []int, center r2.Vec, radius float64, maxResults int) ([]int, bool) {
	if radius < 0 || math.IsNaN(radius) {
		radius = 0
	}
	// Reach must also cover particles whose center is outside the query
	// radius but whose disc overlaps it.
	colMin, colMax, rowMin, rowMax := g.cellRange(center, radius+g.maxSize)
	cols, _ := g.geom.Dims()
	items := g.store.Items()
	found := 0

	for row := rowMin; row <= rowMax; row++ {
		for col := colMin; col <= colMax; col++ {
			for _, i := range g.cells[row*cols+col] {
				p := &items[i]
				if p.Mass == 0 {
					continue
				}
				reach := radius + p.Size
				d := r2.Sub(p.Position, center)
				if d.X*d.X+d.Y*d.Y > reach*reach {
					continue
				}
				if maxResults > 0 && found >= maxResults {
					return dst, true
				}
				dst = append(dst, int(i))
				found++
			}
		}
	}
	return dst, false
}

// cellRange returns the inclusive cell window covering radius around point,
// clamped to the grid.
func (g *SpatialGrid) cellRange(point r2.Vec, radius float64) (colMin, colMax, rowMin, rowMax int) {
	cols, rows := g.geom.Dims()
	// Clamp before converting: huge or infinite radii overflow int.
	reach := int(math.Min(math.Ceil(radius/g.geom.CellSize()), float64(max(cols, rows))))
	col, row := g.geom.WorldToCell(point.X, point.Y, true)
	colMin = max(0, col-reach)
	colMax = min(cols-1, col+reach)
	rowMin = max(0, row-reach)
	rowMax = min(rows-1, row+reach)
	return colMin, colMax, rowMin, rowMax
}

// Neighbors returns a lazy iterator over the cells within radius of position.
func (g *SpatialGrid) Neighbors(position r2.Vec, radius float64) NeighborIterator {
	var it NeighborIterator
	it.Init(g, position, radius)
	return it
}

// SetCamera moves the grid with the camera. The grid is only reconfigured
// when the camera moved more than half a cell or the zoom changed past the
// hysteresis threshold; camera jitter does not rebuild it every frame.
func (g *SpatialGrid) SetCamera(x, y, zoom float64) bool {
	half := g.geom.CellSize() / 2
	if math.Abs(x-g.view.CX) <= half &&
		math.Abs(y-g.view.CY) <= half &&
		math.Abs(zoom-g.view.Zoom) <= g.opts.ZoomHysteresis {
		return false
	}
	g.view.CX, g.view.CY, g.view.Zoom = x, y, zoom
	g.reconfigure()
	return true
}

// SetSize updates the viewport size, reconfiguring when it changed.
func (g *SpatialGrid) SetSize(width, height float64) bool {
	if width == g.view.Width && height == g.view.Height {
		return false
	}
	g.view.Width, g.view.Height = width, height
	g.reconfigure()
	return true
}

// SetView applies a full camera snapshot through SetSize and SetCamera.
func (g *SpatialGrid) SetView(v View) bool {
	resized := g.SetSize(v.Width, v.Height)
	moved := g.SetCamera(v.CX, v.CY, v.Zoom)
	return resized || moved
}

// SetCellSize changes the cell size. The grid is emptied.
func (g *SpatialGrid) SetCellSize(size float64) error {
	if err := validateCellSize(size); err != nil {
		return err
	}
	g.geom.SetCellSize(size)
	g.resizeCells()
	return nil
}

// CellOf returns the cell particle i was inserted into.
func (g *SpatialGrid) CellOf(i int) (col, row int, ok bool) {
	if i < 0 || i >= len(g.cellOf) || g.cellOf[i] < 0 {
		return 0, 0, false
	}
	cols, _ := g.geom.Dims()
	idx := int(g.cellOf[i])
	return idx % cols, idx / cols, true
}

// Cell returns the indices stored in one cell. The slice is owned by the grid.
func (g *SpatialGrid) Cell(col, row int) []int32 {
	cols, rows := g.geom.Dims()
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return nil
	}
	return g.cells[row*cols+col]
}

// AllParticles appends every indexed particle to dst in cell order.
func (g *SpatialGrid) AllParticles(dst []int) []int {
	for _, cell := range g.cells {
		for _, i := range cell {
			dst = append(dst, int(i))
		}
	}
	return dst
}

// Count returns the number of indexed particles.
func (g *SpatialGrid) Count() int { return g.count }

// Dims returns the column and row counts.
func (g *SpatialGrid) Dims() (cols, rows int) { return g.geom.Dims() }

// Geometry exposes the grid geometry.
func (g *SpatialGrid) Geometry() *Geometry { return g.geom }

// View returns the view the grid was last configured for.
func (g *SpatialGrid) View() View { return g.view }

// Store returns the particle store the grid indexes.
func (g *SpatialGrid) Store() *particle.Store { return g.store }

// PoolStats reports cell buffer recycling.
func (g *SpatialGrid) PoolStats() PoolStats { return g.pool.stats() }

// MaxSize returns the largest particle size inserted since the last clear.
func (g *SpatialGrid) MaxSize() float64 { return g.maxSize }
