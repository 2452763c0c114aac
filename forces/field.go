package forces

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/pipeline"
)

// Gravity adds a constant acceleration: a += dir * strength.
type Gravity struct {
	pipeline.Base
	strength, dirX, dirY *float64
}

// NewGravity returns a gravity module pulling down the screen.
func NewGravity(name string) *Gravity {
	g := &Gravity{Base: pipeline.NewBase(name)}
	in := g.Inputs().Declare("strength", 9.8).Declare("dirX", 0).Declare("dirY", 1)
	g.strength, g.dirX, g.dirY = in.Ref("strength"), in.Ref("dirX"), in.Ref("dirY")
	return g
}

func (g *Gravity) Apply(c *pipeline.Context) error {
	s := *g.strength
	c.P.Acceleration = r2.Add(c.P.Acceleration, r2.Vec{X: *g.dirX * s, Y: *g.dirY * s})
	return nil
}

// Drag damps velocity: a -= v * coefficient.
type Drag struct {
	pipeline.Base
	coefficient *float64
}

// NewDrag returns a drag module.
func NewDrag(name string) *Drag {
	d := &Drag{Base: pipeline.NewBase(name)}
	d.coefficient = d.Inputs().Declare("coefficient", 0.1).Ref("coefficient")
	return d
}

func (d *Drag) Apply(c *pipeline.Context) error {
	c.P.Acceleration = r2.Sub(c.P.Acceleration, r2.Scale(*d.coefficient, c.P.Velocity))
	return nil
}
