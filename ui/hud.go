package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/swarm/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title      string
	Tick       int64
	Active     int
	Live       int
	Drawn      int
	GridCols   int
	GridRows   int
	Zoom       float64
	FPS        int32
	Paused     bool
	HookErrors int // failures in the last tick
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("Particles: %d active | %d live | %d drawn", data.Active, data.Live, data.Drawn),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Tick: %d | FPS: %d | Grid: %dx%d | Zoom: %.2f", data.Tick, data.FPS, data.GridCols, data.GridRows, data.Zoom),
		10, 55, 16, rl.LightGray,
	)

	statusText := "Running"
	if data.Paused {
		statusText = "PAUSED"
	}
	rl.DrawText(statusText, 10, 75, 16, rl.Yellow)
	if data.HookErrors > 0 {
		rl.DrawText(fmt.Sprintf("%d module failures", data.HookErrors), 100, 75, 16, rl.Red)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders the per-phase timing breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y, width int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	r := p.renderer
	pad := r.Theme.Padding
	height := int32(len(telemetry.Phases)+2)*(r.Theme.LineHeight+2) + pad*2
	r.DrawPanel(p.x, p.y, p.width, height)

	x := p.x + pad
	y := r.DrawSectionHeader(x, p.y+pad, "Performance")
	y = r.DrawLabelValue(x, y, "Tick", fmt.Sprintf("%dus avg (%dus max) %.0f/s",
		stats.AvgTickDuration.Microseconds(), stats.MaxTickDuration.Microseconds(), stats.TicksPerSecond))

	for _, phase := range telemetry.Phases {
		pct := stats.PhasePct[phase]
		y = r.DrawBar(x, y, phase, float32(pct/100), fmt.Sprintf("%.1f%%", pct), p.width-pad*2)
	}
}
