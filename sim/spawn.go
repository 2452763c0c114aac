package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/particle"
)

// Spawn adds pc.Count particles uniformly over the spawn area, centered on
// the origin, with random size, mass and heading. Colors run from blue
// (light) to orange (heavy).
func (s *Simulation) Spawn(pc config.PopulationConfig) {
	halfW, halfH := s.cfg.Derived.WorldHalfW, s.cfg.Derived.WorldHalfH
	for range pc.Count {
		x := (s.rng.Float64()*2 - 1) * halfW
		y := (s.rng.Float64()*2 - 1) * halfH
		heading := s.rng.Float64() * 2 * math.Pi
		speed := s.rng.Float64() * pc.Speed

		t := s.rng.Float64()
		mass := lerp(pc.MinMass, pc.MaxMass, t)
		s.store.Add(particle.Particle{
			Position: r2.Vec{X: x, Y: y},
			Velocity: r2.Vec{X: math.Cos(heading) * speed, Y: math.Sin(heading) * speed},
			Size:     lerp(pc.MinSize, pc.MaxSize, s.rng.Float64()),
			Mass:     mass,
			Color:    massColor(t),
		})
	}
	s.resync.Store(true)
}

// SpawnAt adds a single particle at a world position and returns its slot.
func (s *Simulation) SpawnAt(x, y, size, mass float64) int {
	i := s.store.Add(particle.Particle{
		Position: r2.Vec{X: x, Y: y},
		Size:     size,
		Mass:     mass,
		Color:    massColor(0.5),
	})
	s.gridFresh = false
	return i
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// massColor maps t in [0,1] to an RGBA color.
func massColor(t float64) [4]float64 {
	return [4]float64{
		lerp(0.35, 1.0, t),
		lerp(0.65, 0.55, t),
		lerp(1.0, 0.2, t),
		1,
	}
}
