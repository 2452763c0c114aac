// Package sim ties the particle store, spatial grid, camera and force
// pipeline into a runnable simulation.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"

	"github.com/pthm-cable/swarm/camera"
	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/forces"
	"github.com/pthm-cable/swarm/grid"
	"github.com/pthm-cable/swarm/particle"
	"github.com/pthm-cable/swarm/pipeline"
	"github.com/pthm-cable/swarm/telemetry"
)

// ErrClosed is returned by Step and Run after Close.
var ErrClosed = errors.New("sim: simulation closed")

// Options configures a Simulation beyond the loaded config.
type Options struct {
	Seed      int64  // population seed; 0 uses population.seed from config
	LogStats  bool   // log window and perf stats via slog
	OutputDir string // CSV output directory; empty disables output
	Registry  *forces.Registry

	// StatsCallback is called with every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Simulation owns every piece of simulation state. Step, Run and the
// accessors must be called from a single goroutine; Pause, Resume and
// QueryAsync are safe from any goroutine.
type Simulation struct {
	cfg *config.Config
	rng *rand.Rand

	store    *particle.Store
	grid     *grid.SpatialGrid
	pipe     *pipeline.Pipeline
	camera   *camera.Camera
	registry *forces.Registry

	// Telemetry
	perf          *telemetry.PerfCollector
	collector     *telemetry.Collector
	bookmarks     *telemetry.BookmarkDetector
	output        *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)

	tick       int64
	lastReport pipeline.TickReport
	gridFresh  bool // grid matches the store's current positions

	paused  atomic.Bool
	resync  atomic.Bool
	resumed chan struct{}
	queries chan queryRequest
	done    chan struct{} // closed by Close
	closed  bool
}

// New builds a simulation from cfg: store, grid, pipeline with the
// configured modules, camera and telemetry, then spawns the population.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if cfg == nil {
		return nil, errors.New("sim: nil config")
	}
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Population.Seed
	}
	registry := opts.Registry
	if registry == nil {
		registry = forces.Default()
	}

	s := &Simulation{
		cfg:           cfg,
		rng:           rand.New(rand.NewSource(seed)),
		store:         particle.NewStore(cfg.Population.Count),
		registry:      registry,
		perf:          telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Physics.DT),
		bookmarks:     telemetry.NewBookmarkDetector(10),
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
		resumed:       make(chan struct{}, 1),
		queries:       make(chan queryRequest, 16),
		done:          make(chan struct{}),
	}

	s.camera = camera.New(
		float64(cfg.Screen.Width), float64(cfg.Screen.Height),
		2*cfg.Derived.WorldHalfW, 2*cfg.Derived.WorldHalfH,
	)

	g, err := grid.New(s.store, cfg.Grid.CellSize, s.camera.View(), grid.Options{
		PaddingRatio:   cfg.Grid.PaddingRatio,
		MaxPoolSize:    cfg.Grid.MaxPoolSize,
		ZoomHysteresis: cfg.Grid.Hysteresis,
	})
	if err != nil {
		return nil, fmt.Errorf("creating grid: %w", err)
	}
	s.grid = g

	pipe, err := pipeline.New(s.store, g, newExecutor(cfg.Physics), pipeline.Config{
		ConstrainIterations: cfg.Physics.ConstrainIterations,
		MaxNeighbors:        cfg.Physics.MaxNeighbors,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	s.pipe = pipe
	pipe.SetPhaseObserver(s.perf)

	mods, err := registry.Build(cfg.Modules)
	if err != nil {
		pipe.Close()
		return nil, fmt.Errorf("building modules: %w", err)
	}
	for _, m := range mods {
		if err := pipe.Add(m); err != nil {
			pipe.Close()
			return nil, fmt.Errorf("adding module %s: %w", m.Name(), err)
		}
	}

	s.output, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		pipe.Close()
		return nil, err
	}
	if err := s.output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	s.Spawn(cfg.Population)

	slog.Info("simulation created",
		"seed", seed,
		"particles", s.store.Live(),
		"modules", len(mods),
		"executor", cfg.Physics.Executor,
		"cell_size", cfg.Grid.CellSize,
	)
	return s, nil
}

func newExecutor(pc config.PhysicsConfig) pipeline.Executor {
	if pc.Executor == "parallel" {
		return pipeline.NewParallel(pc.Workers)
	}
	return pipeline.NewSerial()
}

// Step runs one tick: camera sync and grid rebuild, pending queries, the
// pipeline, then telemetry.
func (s *Simulation) Step() error {
	if s.closed {
		return ErrClosed
	}
	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseGrid)
	s.syncGrid()
	s.serveQueries()

	report, err := s.pipe.Step(s.cfg.Physics.DT)
	if err != nil {
		s.perf.EndTick()
		return err
	}
	s.gridFresh = false
	s.tick = int64(report.Tick)
	s.lastReport = report

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.collector.RecordHookFailures(len(report.Failures))
	s.flushTelemetry()

	s.perf.EndTick()
	return nil
}

// Run steps until ctx is cancelled or maxTicks ticks have run in total
// (maxTicks <= 0 means unlimited). While paused it only serves queries.
func (s *Simulation) Run(ctx context.Context, maxTicks int64) error {
	for maxTicks <= 0 || s.tick < maxTicks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.paused.Load() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case req := <-s.queries:
				s.serve(req)
			case <-s.resumed:
			}
			continue
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	slog.Info("max ticks reached", "tick", s.tick)
	return nil
}

// Pause stops Run from stepping.
func (s *Simulation) Pause() { s.paused.Store(true) }

// Resume continues a paused simulation. The grid is fully resynchronized
// with the camera and store before the next tick.
func (s *Simulation) Resume() {
	if !s.paused.Swap(false) {
		return
	}
	s.resync.Store(true)
	select {
	case s.resumed <- struct{}{}:
	default:
	}
}

// TogglePause flips the paused state.
func (s *Simulation) TogglePause() {
	if s.paused.Load() {
		s.Resume()
	} else {
		s.Pause()
	}
}

// Paused reports whether the simulation is paused.
func (s *Simulation) Paused() bool { return s.paused.Load() }

// syncGrid applies the camera view and rebuilds the grid from the store.
func (s *Simulation) syncGrid() {
	resync := s.resync.Swap(false)
	if s.grid.SetView(s.camera.View()) {
		s.collector.RecordGridReconfig()
		cols, rows := s.grid.Dims()
		slog.Debug("grid reconfigured", "tick", s.tick, "cols", cols, "rows", rows)
	}
	if resync {
		s.grid.Clear()
	}
	s.grid.Rebuild()
	s.gridFresh = true
}

// SetConstrainIterations changes the constrain pass count.
func (s *Simulation) SetConstrainIterations(n int) error {
	if err := s.pipe.SetConstrainIterations(n); err != nil {
		return err
	}
	s.cfg.Physics.ConstrainIterations = n
	return nil
}

// SetModuleEnabled toggles the named module.
func (s *Simulation) SetModuleEnabled(name string, enabled bool) error {
	m, ok := s.pipe.Module(name)
	if !ok {
		return fmt.Errorf("%w: %q", forces.ErrUnknownModule, name)
	}
	m.SetEnabled(enabled)
	return nil
}

// Close stops the executor and flushes output files. Pending and later
// async queries are closed without a result.
func (s *Simulation) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	s.dropQueries()
	s.pipe.Close()
	return s.output.Close()
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int64 { return s.tick }

// Store returns the particle store.
func (s *Simulation) Store() *particle.Store { return s.store }

// Grid returns the spatial grid.
func (s *Simulation) Grid() *grid.SpatialGrid { return s.grid }

// Pipeline returns the force pipeline.
func (s *Simulation) Pipeline() *pipeline.Pipeline { return s.pipe }

// Camera returns the camera driving the grid view.
func (s *Simulation) Camera() *camera.Camera { return s.camera }

// Registry returns the module registry used to build the pipeline.
func (s *Simulation) Registry() *forces.Registry { return s.registry }

// Config returns the simulation config.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Perf returns the performance collector.
func (s *Simulation) Perf() *telemetry.PerfCollector { return s.perf }

// LastReport returns the report of the most recent tick.
func (s *Simulation) LastReport() pipeline.TickReport { return s.lastReport }
