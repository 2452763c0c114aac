package forces

import (
	"math"

	"github.com/aquilax/go-perlin"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/particle"
	"github.com/pthm-cable/swarm/pipeline"
)

// Perlin parameters shared by every turbulence field.
const (
	perlinAlpha = 2
	perlinBeta  = 2
	perlinN     = 3
)

// Turbulence pushes particles along a perlin flow field. The noise value at
// a position picks the flow angle; the field drifts by speed in noise
// space every tick.
type Turbulence struct {
	pipeline.Base
	strength, scale, seed, speed *float64

	noise    *perlin.Perlin
	noiseFor int64
	phase    float64
}

// NewTurbulence returns a turbulence module.
func NewTurbulence(name string) *Turbulence {
	t := &Turbulence{Base: pipeline.NewBase(name)}
	in := t.Inputs().
		Declare("strength", 50).
		Declare("scale", 0.01).
		Declare("seed", 1).
		Declare("speed", 0.1)
	t.strength, t.scale, t.seed, t.speed = in.Ref("strength"), in.Ref("scale"), in.Ref("seed"), in.Ref("speed")
	return t
}

// Prepare rebuilds the noise source when the seed changed and advances the
// field's drift.
func (t *Turbulence) Prepare(*particle.Store) error {
	seed := int64(*t.seed)
	if t.noise == nil || seed != t.noiseFor {
		t.noise = perlin.NewPerlin(perlinAlpha, perlinBeta, perlinN, seed)
		t.noiseFor = seed
	}
	t.phase += *t.speed
	return nil
}

func (t *Turbulence) Apply(c *pipeline.Context) error {
	if t.noise == nil {
		return nil
	}
	s := *t.scale
	n := t.noise.Noise2D(c.P.Position.X*s+t.phase, c.P.Position.Y*s)
	angle := n * 2 * math.Pi
	c.P.Acceleration = r2.Add(c.P.Acceleration, r2.Vec{
		X: math.Cos(angle) * *t.strength,
		Y: math.Sin(angle) * *t.strength,
	})
	return nil
}
