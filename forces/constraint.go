package forces

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/pipeline"
)

// Collision separates overlapping discs. The correction is split by inverse
// mass. Only active particles collide; removed and pinned slots are not
// neighbors. Each overlapping pair is visited from both sides in a pass.
type Collision struct {
	pipeline.Base
	stiffness *float64
}

// NewCollision returns a collision module.
func NewCollision(name string) *Collision {
	m := &Collision{Base: pipeline.NewBase(name)}
	m.stiffness = m.Inputs().Declare("stiffness", 0.5).Ref("stiffness")
	return m
}

func (m *Collision) Constrain(c *pipeline.Context) error {
	p := c.P
	reach := p.Size + c.Grid.MaxSize()
	if !(reach > 0) {
		return nil
	}
	items := c.Store.Items()
	wi := 1 / p.Mass

	it := c.Neighbors(reach)
	for {
		j, ok := it.Next(c.Index)
		if !ok {
			break
		}
		q := &items[j]
		if q.Mass <= 0 {
			continue
		}
		minDist := p.Size + q.Size
		d := r2.Sub(q.Position, p.Position)
		distSq := d.X*d.X + d.Y*d.Y
		if distSq >= minDist*minDist {
			continue
		}

		var normal r2.Vec
		dist := math.Sqrt(distSq)
		if dist > 0 {
			normal = r2.Scale(1/dist, d)
		} else {
			// Coincident centers: separate along X, lower slot to the left.
			normal = r2.Vec{X: 1}
			if j < c.Index {
				normal.X = -1
			}
		}

		wj := 1 / q.Mass
		corr := *m.stiffness * (minDist - dist) / (wi + wj)
		p.Position = r2.Sub(p.Position, r2.Scale(corr*wi, normal))
		q.Position = r2.Add(q.Position, r2.Scale(corr*wj, normal))
	}
	return nil
}

// box reads the four wall inputs shared by Bounds and Tunneling.
type box struct {
	minX, minY, maxX, maxY, restitution *float64
}

func declareBox(in *pipeline.Inputs) box {
	in.Declare("minX", -600).Declare("minY", -360).
		Declare("maxX", 600).Declare("maxY", 360).
		Declare("restitution", 0.5)
	return box{
		minX:        in.Ref("minX"),
		minY:        in.Ref("minY"),
		maxX:        in.Ref("maxX"),
		maxY:        in.Ref("maxY"),
		restitution: in.Ref("restitution"),
	}
}

// Bounds keeps particle discs inside the box, reflecting the velocity
// component that hit a wall.
type Bounds struct {
	pipeline.Base
	box
}

// NewBounds returns a bounds module.
func NewBounds(name string) *Bounds {
	b := &Bounds{Base: pipeline.NewBase(name)}
	b.box = declareBox(b.Inputs())
	return b
}

func (b *Bounds) Constrain(c *pipeline.Context) error {
	p := c.P
	e := *b.restitution
	p.Position.X, p.Velocity.X = clampAxis(p.Position.X, p.Velocity.X, *b.minX+p.Size, *b.maxX-p.Size, e)
	p.Position.Y, p.Velocity.Y = clampAxis(p.Position.Y, p.Velocity.Y, *b.minY+p.Size, *b.maxY-p.Size, e)
	return nil
}

// clampAxis clamps x into [lo, hi] and reflects v away from the wall it hit.
// A box narrower than the disc pins x to the midpoint.
func clampAxis(x, v, lo, hi, restitution float64) (float64, float64) {
	if lo > hi {
		return (lo + hi) / 2, 0
	}
	switch {
	case x < lo:
		x = lo
		if v < 0 {
			v = -v * restitution
		}
	case x > hi:
		x = hi
		if v > 0 {
			v = -v * restitution
		}
	}
	return x, v
}

// Tunneling catches particles whose path this tick left the box: the
// particle is moved back to where the segment PrevPos->PostPos first
// crossed a wall and its velocity is reflected off that wall.
type Tunneling struct {
	pipeline.Base
	box
}

// NewTunneling returns a tunneling module.
func NewTunneling(name string) *Tunneling {
	t := &Tunneling{Base: pipeline.NewBase(name)}
	t.box = declareBox(t.Inputs())
	return t
}

func (t *Tunneling) Correct(c *pipeline.Context) error {
	minX, minY, maxX, maxY := *t.minX, *t.minY, *t.maxX, *t.maxY
	from, to := c.PrevPos, c.PostPos
	if !inside(from, minX, minY, maxX, maxY) || inside(to, minX, minY, maxX, maxY) {
		return nil
	}

	d := r2.Sub(to, from)
	tHit, axis := 1.0, -1
	// Earliest wall crossing along the segment.
	if d.X < 0 && to.X < minX {
		if s := (minX - from.X) / d.X; s < tHit {
			tHit, axis = s, 0
		}
	}
	if d.X > 0 && to.X > maxX {
		if s := (maxX - from.X) / d.X; s < tHit {
			tHit, axis = s, 0
		}
	}
	if d.Y < 0 && to.Y < minY {
		if s := (minY - from.Y) / d.Y; s < tHit {
			tHit, axis = s, 1
		}
	}
	if d.Y > 0 && to.Y > maxY {
		if s := (maxY - from.Y) / d.Y; s < tHit {
			tHit, axis = s, 1
		}
	}
	if axis < 0 {
		return nil
	}

	p := c.P
	p.Position = r2.Add(from, r2.Scale(tHit, d))
	e := *t.restitution
	if axis == 0 {
		p.Velocity.X = -p.Velocity.X * e
	} else {
		p.Velocity.Y = -p.Velocity.Y * e
	}
	return nil
}

func inside(v r2.Vec, minX, minY, maxX, maxY float64) bool {
	return v.X >= minX && v.X <= maxX && v.Y >= minY && v.Y <= maxY
}
