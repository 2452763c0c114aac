package sim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/forces"
	"github.com/pthm-cable/swarm/telemetry"
)

func testConfig(t *testing.T, count int) *config.Config {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	cfg.Population.Count = count
	cfg.Physics.Executor = "serial"
	return cfg
}

func newSim(t *testing.T, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	s, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_SpawnsPopulation(t *testing.T) {
	cfg := testConfig(t, 200)
	s := newSim(t, cfg, Options{})

	if got := s.Store().Live(); got != 200 {
		t.Fatalf("live = %d, want 200", got)
	}
	if s.Tick() != 0 {
		t.Errorf("tick = %d, want 0", s.Tick())
	}
	if got := len(s.Pipeline().Modules()); got != len(cfg.Modules) {
		t.Errorf("modules = %d, want %d", got, len(cfg.Modules))
	}

	halfW, halfH := cfg.Derived.WorldHalfW, cfg.Derived.WorldHalfH
	for i := range s.Store().Len() {
		p := s.Store().At(i)
		if p.Position.X < -halfW || p.Position.X > halfW || p.Position.Y < -halfH || p.Position.Y > halfH {
			t.Fatalf("particle %d spawned outside area at %v", i, p.Position)
		}
		if p.Size < cfg.Population.MinSize || p.Size > cfg.Population.MaxSize {
			t.Fatalf("particle %d size %v out of range", i, p.Size)
		}
		if !p.Active() {
			t.Fatalf("particle %d not active", i)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Error("expected error for nil config")
	}

	cfg := testConfig(t, 0)
	cfg.Modules = append(cfg.Modules, config.ModuleConfig{Type: "vortex"})
	if _, err := New(cfg, Options{}); !errors.Is(err, forces.ErrUnknownModule) {
		t.Errorf("err = %v, want ErrUnknownModule", err)
	}

	cfg = testConfig(t, 0)
	cfg.Modules = append(cfg.Modules, cfg.Modules[0])
	if _, err := New(cfg, Options{}); err == nil {
		t.Error("expected error for duplicate module name")
	}
}

func TestStep_AdvancesTick(t *testing.T) {
	s := newSim(t, testConfig(t, 50), Options{})

	for range 3 {
		if err := s.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if s.Tick() != 3 {
		t.Errorf("tick = %d, want 3", s.Tick())
	}
	if got := s.LastReport().Active; got != 50 {
		t.Errorf("report active = %d, want 50", got)
	}
	if s.Grid().Count() != 50 {
		t.Errorf("grid count = %d, want 50", s.Grid().Count())
	}
}

func TestStep_AfterClose(t *testing.T) {
	s, err := New(testConfig(t, 10), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Step(); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRun_MaxTicks(t *testing.T) {
	s := newSim(t, testConfig(t, 50), Options{})

	if err := s.Run(context.Background(), 12); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Tick() != 12 {
		t.Errorf("tick = %d, want 12", s.Tick())
	}

	// maxTicks counts total ticks, so running again to the same limit is a no-op.
	if err := s.Run(context.Background(), 12); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Tick() != 12 {
		t.Errorf("tick = %d, want 12", s.Tick())
	}
}

func TestRun_Cancelled(t *testing.T) {
	s := newSim(t, testConfig(t, 10), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if s.Tick() != 0 {
		t.Errorf("tick = %d, want 0", s.Tick())
	}
}

func TestRun_PausedServesQueries(t *testing.T) {
	s := newSim(t, testConfig(t, 100), Options{})
	s.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 0) }()

	select {
	case res, ok := <-s.QueryAsync(context.Background(), r2.Vec{}, 1e6, 0):
		if !ok {
			t.Fatal("query channel closed without a result")
		}
		if len(res.Indices) != 100 || res.Truncated {
			t.Errorf("query found %d (truncated %v), want 100", len(res.Indices), res.Truncated)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("query not served while paused")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if s.Tick() != 0 {
		t.Errorf("paused simulation advanced to tick %d", s.Tick())
	}
}

func TestPauseResume(t *testing.T) {
	s := newSim(t, testConfig(t, 20), Options{})

	if s.Paused() {
		t.Fatal("new simulation should not be paused")
	}
	s.TogglePause()
	if !s.Paused() {
		t.Fatal("expected paused after toggle")
	}
	s.TogglePause()
	if s.Paused() {
		t.Fatal("expected running after second toggle")
	}

	// Resume without Pause is a no-op.
	s.Resume()

	if err := s.Run(context.Background(), 5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Tick() != 5 {
		t.Errorf("tick = %d, want 5", s.Tick())
	}
}

func TestQueryAsync_Cancelled(t *testing.T) {
	s := newSim(t, testConfig(t, 10), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.QueryAsync(ctx, r2.Vec{}, 100, 0)
	cancel()

	// Served after cancellation or dropped before queueing: no result either way.
	deadline := time.After(5 * time.Second)
	for {
		s.serveQueries()
		select {
		case _, ok := <-ch:
			if ok {
				t.Error("expected no result for a cancelled query")
			}
			return
		case <-deadline:
			t.Fatal("channel never closed")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestQueryAsync_Close(t *testing.T) {
	tests := []struct {
		name        string
		closeBefore bool
	}{
		{"pending at close", false},
		{"queued after close", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSim(t, testConfig(t, 10), Options{})
			if tt.closeBefore {
				s.Close()
			}
			ch := s.QueryAsync(context.Background(), r2.Vec{}, 100, 0)
			if !tt.closeBefore {
				s.Close()
			}

			select {
			case _, ok := <-ch:
				if ok {
					t.Error("expected no result from a closed simulation")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("query channel never closed")
			}
		})
	}
}

func TestQuery_FindsSpawned(t *testing.T) {
	s := newSim(t, testConfig(t, 0), Options{})

	i := s.SpawnAt(0, 0, 5, 1)
	res := s.Query(r2.Vec{X: 3, Y: 0}, 1, 0)
	if !slices.Contains(res.Indices, i) || res.Truncated {
		t.Errorf("query = %+v, want [%d] untruncated", res, i)
	}

	if res := s.Query(r2.Vec{X: 100, Y: 100}, 1, 0); len(res.Indices) != 0 {
		t.Errorf("far query found %v", res.Indices)
	}
}

func TestDeterministic_SerialParallel(t *testing.T) {
	serialCfg := testConfig(t, 300)
	parallelCfg := testConfig(t, 300)
	parallelCfg.Physics.Executor = "parallel"
	parallelCfg.Physics.Workers = 4

	a := newSim(t, serialCfg, Options{})
	b := newSim(t, parallelCfg, Options{})
	for range 20 {
		if err := a.Step(); err != nil {
			t.Fatalf("serial Step: %v", err)
		}
		if err := b.Step(); err != nil {
			t.Fatalf("parallel Step: %v", err)
		}
	}

	for i := range a.Store().Len() {
		pa, pb := a.Store().At(i), b.Store().At(i)
		if pa.Position != pb.Position || pa.Velocity != pb.Velocity {
			t.Fatalf("particle %d differs: serial %v/%v parallel %v/%v",
				i, pa.Position, pa.Velocity, pb.Position, pb.Velocity)
		}
	}
}

func TestSeedOverride(t *testing.T) {
	a := newSim(t, testConfig(t, 10), Options{Seed: 1})
	b := newSim(t, testConfig(t, 10), Options{Seed: 2})
	if a.Store().At(0).Position == b.Store().At(0).Position {
		t.Error("different seeds should spawn different populations")
	}
}

func TestStatsCallback(t *testing.T) {
	cfg := testConfig(t, 30)
	cfg.Telemetry.StatsWindow = cfg.Physics.DT * 5

	var windows []telemetry.WindowStats
	s := newSim(t, cfg, Options{StatsCallback: func(ws telemetry.WindowStats) {
		windows = append(windows, ws)
	}})

	if err := s.Run(context.Background(), 20); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(windows) != 4 {
		t.Fatalf("got %d windows, want 4", len(windows))
	}
	if windows[3].WindowEndTick != 20 || windows[3].Active != 30 {
		t.Errorf("last window = end %d active %d, want 20/30", windows[3].WindowEndTick, windows[3].Active)
	}
}

func TestOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	cfg := testConfig(t, 20)
	cfg.Telemetry.StatsWindow = cfg.Physics.DT * 2

	s, err := New(cfg, Options{OutputDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(context.Background(), 6); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, name := range []string{telemetry.TelemetryFile, telemetry.PerfFile, telemetry.BookmarksFile, telemetry.ConfigFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestControls(t *testing.T) {
	s := newSim(t, testConfig(t, 10), Options{})

	if err := s.SetModuleEnabled("gravity", false); err != nil {
		t.Fatalf("SetModuleEnabled: %v", err)
	}
	if m, _ := s.Pipeline().Module("gravity"); m.Enabled() {
		t.Error("gravity should be disabled")
	}
	if err := s.SetModuleEnabled("nope", true); !errors.Is(err, forces.ErrUnknownModule) {
		t.Errorf("err = %v, want ErrUnknownModule", err)
	}

	if err := s.SetConstrainIterations(2); err != nil {
		t.Fatalf("SetConstrainIterations: %v", err)
	}
	if got := s.Pipeline().Config().ConstrainIterations; got != 2 {
		t.Errorf("iterations = %d, want 2", got)
	}
	if err := s.SetConstrainIterations(-1); err == nil {
		t.Error("expected error for negative iterations")
	}
}

func TestCameraMoveReconfiguresGrid(t *testing.T) {
	s := newSim(t, testConfig(t, 10), Options{})
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	before := s.Grid().View()

	s.Camera().Pan(200, 0)
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	after := s.Grid().View()
	if after.CX == before.CX {
		t.Errorf("grid view did not follow camera: %v -> %v", before, after)
	}
}

func BenchmarkStep(b *testing.B) {
	cfg, err := config.Defaults()
	if err != nil {
		b.Fatal(err)
	}
	cfg.Population.Count = 2000
	s, err := New(cfg, Options{})
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
