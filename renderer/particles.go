// Package renderer draws the simulation with raylib.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/swarm/camera"
	"github.com/pthm-cable/swarm/particle"
)

// ParticleRenderer renders live particles as filled circles.
type ParticleRenderer struct {
	MinRadius   float32  // smallest on-screen radius in pixels
	PinnedColor rl.Color // pinned particles ignore their own color

	drawn int
}

// NewParticleRenderer creates a new particle renderer.
func NewParticleRenderer() *ParticleRenderer {
	return &ParticleRenderer{
		MinRadius:   1,
		PinnedColor: rl.Color{R: 160, G: 160, B: 170, A: 255},
	}
}

// Draw renders every live particle visible through cam.
func (r *ParticleRenderer) Draw(store *particle.Store, cam *camera.Camera) {
	r.drawn = 0
	items := store.Items()
	for i := range items {
		p := &items[i]
		if p.Mass == 0 || !cam.IsVisible(p.Position.X, p.Position.Y, p.Size) {
			continue
		}

		sx, sy := cam.WorldToScreen(p.Position.X, p.Position.Y)
		radius := max(r.MinRadius, float32(p.Size*cam.Zoom))

		color := toColor(p.Color)
		if p.Pinned() {
			color = r.PinnedColor
		}
		rl.DrawCircleV(rl.Vector2{X: float32(sx), Y: float32(sy)}, radius, color)
		r.drawn++
	}
}

// Drawn returns how many particles the last Draw rendered.
func (r *ParticleRenderer) Drawn() int { return r.drawn }

// toColor converts an RGBA color in [0,1] to a raylib color.
func toColor(c [4]float64) rl.Color {
	return rl.Color{R: unit8(c[0]), G: unit8(c[1]), B: unit8(c[2]), A: unit8(c[3])}
}

func unit8(v float64) uint8 {
	return uint8(min(1, max(0, v))*255 + 0.5)
}
