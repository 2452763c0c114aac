package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// NeighborIterator walks the cells around a position lazily, yielding one
// candidate index at a time. Cells are visited in row-major order over
// [row-reach, row+reach] x [col-reach, col+reach], clamped to the grid.
// Candidates are not distance-filtered.
//
// The zero value is exhausted. Iterators are plain values so callers can
// embed and reuse them without allocating.
type NeighborIterator struct {
	cells [][]int32
	cols  int

	colMin, colMax int
	rowMax         int
	col, row       int

	cell []int32
	pos  int
	done bool
}

// Init positions the iterator at the first cell within radius of position.
func (it *NeighborIterator) Init(g *SpatialGrid, position r2.Vec, radius float64) {
	*it = NeighborIterator{done: true}
	if g == nil || radius < 0 || math.IsNaN(radius) {
		return
	}
	colMin, colMax, rowMin, rowMax := g.cellRange(position, radius)
	cols, _ := g.geom.Dims()

	it.cells = g.cells
	it.cols = cols
	it.colMin, it.colMax = colMin, colMax
	it.rowMax = rowMax
	it.col, it.row = colMin, rowMin
	it.cell = g.cells[rowMin*cols+colMin]
	it.done = false
}

// Next returns the next candidate index, skipping exclude. The second result
// is false once every cell has been visited.
func (it *NeighborIterator) Next(exclude int) (int, bool) {
	for !it.done {
		for it.pos < len(it.cell) {
			i := int(it.cell[it.pos])
			it.pos++
			if i == exclude {
				continue
			}
			return i, true
		}
		it.advance()
	}
	return -1, false
}

// advance moves to the next cell in row-major order.
func (it *NeighborIterator) advance() {
	it.col++
	if it.col > it.colMax {
		it.col = it.colMin
		it.row++
		if it.row > it.rowMax {
			it.done = true
			it.cell = nil
			return
		}
	}
	it.cell = it.cells[it.row*it.cols+it.col]
	it.pos = 0
}

// Done reports whether the iterator is exhausted.
func (it *NeighborIterator) Done() bool { return it.done }
