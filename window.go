package main

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/grid"
	"github.com/pthm-cable/swarm/renderer"
	"github.com/pthm-cable/swarm/sim"
	"github.com/pthm-cable/swarm/ui"
)

const (
	panelWidth   = 260
	queryRadius  = 40
	queryMax     = 256
	controlsHelp = "Space: pause | Arrows/wheel: pan/zoom | Home: reset | G/P/C/Q: overlays | Click: query"
)

// window holds the raylib frontend state.
type window struct {
	sim      *sim.Simulation
	overlays *ui.OverlayRegistry
	hud      *ui.HUD
	perf     *ui.PerfPanel
	controls *ui.ControlPanel
	parts    *renderer.ParticleRenderer
	gridView *renderer.GridOverlay

	queryCenter r2.Vec
	queryResult grid.QueryResult
	hasQuery    bool
}

func runWindowed(s *sim.Simulation, cfg *config.Config, maxTicks int64) {
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Swarm")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	w := &window{
		sim:      s,
		overlays: ui.NewOverlayRegistry(),
		hud:      ui.NewHUD(),
		perf:     ui.NewPerfPanel(int32(cfg.Screen.Width)-panelWidth-10, 10, panelWidth),
		controls: ui.NewControlPanel(10, 100, panelWidth),
		parts:    renderer.NewParticleRenderer(),
		gridView: renderer.NewGridOverlay(),
	}

	for !rl.WindowShouldClose() {
		w.handleInput()
		if !s.Paused() {
			if err := s.Step(); err != nil {
				slog.Error("step failed", "tick", s.Tick(), "error", err)
				return
			}
		}
		s.Perf().RecordFrame()
		w.draw()

		if maxTicks > 0 && s.Tick() >= maxTicks {
			slog.Info("max ticks reached", "tick", s.Tick())
			return
		}
	}
}

// handleInput processes keyboard and mouse input.
func (w *window) handleInput() {
	cam := w.sim.Camera()

	if rl.IsWindowResized() {
		sw, sh := float64(rl.GetScreenWidth()), float64(rl.GetScreenHeight())
		cam.Resize(sw, sh)
		w.perf.SetPosition(int32(sw)-panelWidth-10, 10)
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		w.sim.TogglePause()
	}
	w.overlays.HandleKeys()

	// Pan speed is in screen pixels, so it feels the same at any zoom
	const panSpeed = 8.0
	if rl.IsKeyDown(rl.KeyRight) {
		cam.Pan(panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		cam.Pan(-panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		cam.Pan(0, panSpeed)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		cam.Pan(0, -panSpeed)
	}

	mouse := rl.GetMousePosition()
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		cam.ZoomAt(float64(mouse.X), float64(mouse.Y), 1+float64(wheel)*0.1)
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		cam.Reset()
	}

	if w.overlays.IsEnabled(ui.OverlayQuery) && rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		wx, wy := cam.ScreenToWorld(float64(mouse.X), float64(mouse.Y))
		w.queryCenter = r2.Vec{X: wx, Y: wy}
		w.hasQuery = true
	}
	if w.hasQuery {
		w.queryResult = w.sim.Query(w.queryCenter, queryRadius, queryMax)
	}
}

// draw renders one frame.
func (w *window) draw() {
	s := w.sim
	cam := s.Camera()

	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 12, G: 14, B: 20, A: 255})

	if w.overlays.IsEnabled(ui.OverlayGrid) {
		w.gridView.Draw(s.Grid(), cam)
	}
	w.parts.Draw(s.Store(), cam)
	if w.overlays.IsEnabled(ui.OverlayQuery) && w.hasQuery {
		renderer.DrawQuery(s.Store(), cam, w.queryCenter, queryRadius, w.queryResult)
	}

	cols, rows := s.Grid().Dims()
	w.hud.Draw(ui.HUDData{
		Title:      "Swarm",
		Tick:       s.Tick(),
		Active:     s.LastReport().Active,
		Live:       s.Store().Live(),
		Drawn:      w.parts.Drawn(),
		GridCols:   cols,
		GridRows:   rows,
		Zoom:       cam.Zoom,
		FPS:        rl.GetFPS(),
		Paused:     s.Paused(),
		HookErrors: len(s.LastReport().Failures),
	})
	if w.overlays.IsEnabled(ui.OverlayControls) {
		w.controls.Draw(s)
	}
	if w.overlays.IsEnabled(ui.OverlayPerf) {
		w.perf.Draw(s.Perf().Stats())
	}
	w.hud.DrawControls(int32(rl.GetScreenHeight()), controlsHelp)

	rl.EndDrawing()
}
