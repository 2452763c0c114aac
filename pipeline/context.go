package pipeline

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/grid"
	"github.com/pthm-cable/swarm/particle"
)

// Context is handed to every hook call. One Context exists per executor
// worker and is rebound for each particle, so hooks must not retain it.
type Context struct {
	Index int                // slot of the particle being processed
	P     *particle.Particle // the particle being processed
	DT    float64
	Tick  uint64

	Values *Inputs     // the calling module's inputs
	Board  *Blackboard // per-tick scratch shared between modules

	// Set during the correct phase only.
	PrevPos r2.Vec // position before integration
	PostPos r2.Vec // position after the constrain phase

	Store *particle.Store
	Grid  *grid.SpatialGrid

	maxNeighbors int
	it           grid.NeighborIterator
}

// Neighbors starts a raw cell walk around the particle. Candidates are not
// distance-filtered; pass c.Index to Next to skip the particle itself.
func (c *Context) Neighbors(radius float64) *grid.NeighborIterator {
	c.it.Init(c.Grid, c.P.Position, radius)
	return &c.it
}

// ForEachNeighbor calls fn for every active particle strictly closer than
// radius, excluding the particle itself, up to the pipeline's neighbor cap.
// d is the vector from the particle to the neighbor. Returning false from fn
// stops the walk. The number of neighbors visited is returned.
func (c *Context) ForEachNeighbor(radius float64, fn func(j int, q *particle.Particle, d r2.Vec, distSq float64) bool) int {
	if !(radius > 0) || c.Grid == nil {
		return 0
	}
	items := c.Store.Items()
	radiusSq := radius * radius
	origin := c.P.Position
	visited := 0

	c.it.Init(c.Grid, origin, radius)
	for {
		j, ok := c.it.Next(c.Index)
		if !ok {
			break
		}
		q := &items[j]
		if q.Mass <= 0 {
			continue
		}
		d := r2.Sub(q.Position, origin)
		distSq := d.X*d.X + d.Y*d.Y
		if distSq >= radiusSq {
			continue
		}
		visited++
		if !fn(j, q, d, distSq) {
			break
		}
		if c.maxNeighbors > 0 && visited >= c.maxNeighbors {
			break
		}
	}
	return visited
}

func (c *Context) bind(i int, p *particle.Particle, values *Inputs, dt float64) {
	c.Index = i
	c.P = p
	c.Values = values
	c.DT = dt
}
