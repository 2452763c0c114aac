package forces

import (
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/particle"
	"github.com/pthm-cable/swarm/pipeline"
)

// body adapts a particle slot to barneshut.Particle2.
type body struct {
	pos  r2.Vec
	mass float64
}

func (b *body) Coord2() r2.Vec { return b.pos }
func (b *body) Mass() float64  { return b.mass }

// Gravitation attracts every active particle to every other with a
// Barnes-Hut approximation. The tree is rebuilt once per tick in Prepare
// from pre-integration positions.
type Gravitation struct {
	pipeline.Base
	g, theta, softening *float64

	bodies []body
	parts  []barneshut.Particle2
	plane  barneshut.Plane
	ready  bool
	direct bool // quadtree could not be built this tick; sum pairwise
	soft2  float64
	force  barneshut.Force2
}

// NewGravitation returns an N-body gravitation module.
func NewGravitation(name string) *Gravitation {
	m := &Gravitation{Base: pipeline.NewBase(name)}
	in := m.Inputs().Declare("g", 100).Declare("theta", 0.5).Declare("softening", 4)
	m.g, m.theta, m.softening = in.Ref("g"), in.Ref("theta"), in.Ref("softening")
	m.force = m.softenedGravity
	return m
}

// softenedGravity is barneshut.Gravity2 with a Plummer softening length so
// close encounters stay finite.
func (m *Gravitation) softenedGravity(_, _ barneshut.Particle2, m1, m2 float64, v r2.Vec) r2.Vec {
	d2 := v.X*v.X + v.Y*v.Y + m.soft2
	if d2 == 0 {
		return r2.Vec{}
	}
	return r2.Scale(m1*m2/(d2*math.Sqrt(d2)), v)
}

// Prepare snapshots active particles and builds the quadtree. Coincident
// bodies cannot be split by the quadtree; for such ticks Apply sums every
// pair directly.
func (m *Gravitation) Prepare(store *particle.Store) error {
	items := store.Items()
	if cap(m.bodies) < len(items) {
		m.bodies = make([]body, len(items))
	}
	m.bodies = m.bodies[:len(items)]
	m.parts = m.parts[:0]
	for i := range items {
		p := &items[i]
		m.bodies[i] = body{pos: p.Position, mass: p.Mass}
		if p.Mass > 0 {
			m.parts = append(m.parts, &m.bodies[i])
		}
	}

	s := *m.softening
	m.soft2 = s * s
	m.ready, m.direct = false, false
	if len(m.parts) < 2 {
		return nil
	}
	m.plane.Particles = m.parts
	if err := m.plane.Reset(); err != nil {
		m.direct = true
	}
	m.ready = true
	return nil
}

// directForce sums the softened pull of every other active body on b.
func (m *Gravitation) directForce(b *body) r2.Vec {
	var f r2.Vec
	for _, q := range m.parts {
		if q == barneshut.Particle2(b) {
			continue
		}
		f = r2.Add(f, m.softenedGravity(b, q, b.mass, q.Mass(), r2.Sub(q.Coord2(), b.pos)))
	}
	return f
}

func (m *Gravitation) Apply(c *pipeline.Context) error {
	if !m.ready || c.Index >= len(m.bodies) {
		return nil
	}
	b := &m.bodies[c.Index]
	var f r2.Vec
	if m.direct {
		f = m.directForce(b)
	} else {
		f = m.plane.ForceOn(b, *m.theta, m.force)
	}
	c.P.Acceleration = r2.Add(c.P.Acceleration, r2.Scale(*m.g/c.P.Mass, f))
	return nil
}
