package forces

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/particle"
	"github.com/pthm-cable/swarm/pipeline"
)

// DensityChannel is the blackboard channel written by the density module.
const DensityChannel = "density"

// Density estimates local crowding in State and pushes particles apart in
// Apply. Each neighbor within radius contributes (1 - d/radius)^2 to the
// density; the push from a neighbor scales with the mean density of the pair.
type Density struct {
	pipeline.Base
	radius, strength *float64
	ch               pipeline.Channel
}

// NewDensity returns a density module.
func NewDensity(name string) *Density {
	d := &Density{Base: pipeline.NewBase(name)}
	in := d.Inputs().Declare("radius", 12).Declare("strength", 100)
	d.radius, d.strength = in.Ref("radius"), in.Ref("strength")
	return d
}

func (d *Density) DeclareChannels(b *pipeline.Blackboard) {
	d.ch = b.Declare(DensityChannel)
}

func (d *Density) State(c *pipeline.Context) error {
	r := *d.radius
	sum := 0.0
	c.ForEachNeighbor(r, func(_ int, _ *particle.Particle, _ r2.Vec, distSq float64) bool {
		w := 1 - math.Sqrt(distSq)/r
		sum += w * w
		return true
	})
	c.Board.Set(d.ch, c.Index, sum)
	return nil
}

func (d *Density) Apply(c *pipeline.Context) error {
	r := *d.radius
	own := c.Board.Get(d.ch, c.Index)
	var push r2.Vec
	c.ForEachNeighbor(r, func(j int, _ *particle.Particle, v r2.Vec, distSq float64) bool {
		dist := math.Sqrt(distSq)
		if dist == 0 {
			return true
		}
		pressure := (own + c.Board.Get(d.ch, j)) / 2
		w := (1 - dist/r) * pressure
		push = r2.Sub(push, r2.Scale(w/dist, v))
		return true
	})
	c.P.Acceleration = r2.Add(c.P.Acceleration, r2.Scale(*d.strength/c.P.Mass, push))
	return nil
}
