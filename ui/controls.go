package ui

import (
	"fmt"
	"log/slog"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/swarm/sim"
)

// MaxConstrainIterations is the upper end of the iteration slider.
const MaxConstrainIterations = 20

// ControlPanel renders raygui controls: one toggle button per module and a
// slider for the constrain pass count.
type ControlPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewControlPanel creates a new control panel.
func NewControlPanel(x, y, width int32) *ControlPanel {
	return &ControlPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (c *ControlPanel) SetPosition(x, y int32) {
	c.x = x
	c.y = y
}

// Draw renders the panel and applies any changes to s. Returns the Y
// position below the panel.
func (c *ControlPanel) Draw(s *sim.Simulation) int32 {
	r := c.renderer
	pad := r.Theme.Padding
	const buttonH = 22

	mods := s.Pipeline().Modules()
	height := pad*3 + r.Theme.LineHeight*3 + int32(len(mods))*(buttonH+4) + 24
	r.DrawPanel(c.x, c.y, c.width, height)

	x := float32(c.x + pad)
	innerW := float32(c.width - pad*2)
	y := r.DrawSectionHeader(c.x+pad, c.y+pad, "Modules")

	for _, m := range mods {
		label := s.Registry().Label(typeOf(s, m.Name()))
		state := "off"
		if m.Enabled() {
			state = "on"
		}
		text := fmt.Sprintf("%s (%s): %s", label, m.Name(), state)
		if gui.Button(rl.Rectangle{X: x, Y: float32(y), Width: innerW, Height: buttonH}, text) {
			m.SetEnabled(!m.Enabled())
			slog.Info("module toggled", "module", m.Name(), "enabled", m.Enabled())
		}
		y += buttonH + 4
	}

	y += pad / 2
	iters := s.Pipeline().Config().ConstrainIterations
	y = r.DrawLabelValue(c.x+pad, y, "Iterations", fmt.Sprintf("%d", iters))
	v := gui.SliderBar(
		rl.Rectangle{X: x + 20, Y: float32(y), Width: innerW - 40, Height: 16},
		"0", fmt.Sprintf("%d", MaxConstrainIterations),
		float32(iters), 0, MaxConstrainIterations,
	)
	if n := int(v + 0.5); n != iters {
		if err := s.SetConstrainIterations(n); err != nil {
			slog.Error("failed to set constrain iterations", "error", err)
		}
	}
	return y + 24 + pad
}

// typeOf returns the configured type of the named module, or the name.
func typeOf(s *sim.Simulation, name string) string {
	for _, mc := range s.Config().Modules {
		if mc.ModuleName() == name {
			return mc.Type
		}
	}
	return name
}
