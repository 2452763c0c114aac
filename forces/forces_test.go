package forces

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/grid"
	"github.com/pthm-cable/swarm/particle"
	"github.com/pthm-cable/swarm/pipeline"
)

const eps = 1e-9

func newWorld(t *testing.T, store *particle.Store, mods ...pipeline.Module) (*pipeline.Pipeline, *grid.SpatialGrid) {
	t.Helper()
	g, err := grid.New(store, 16, grid.View{Width: 400, Height: 400, Zoom: 1}, grid.DefaultOptions())
	if err != nil {
		t.Fatalf("grid.New() failed: %v", err)
	}
	p, err := pipeline.New(store, g, nil, pipeline.DefaultConfig())
	if err != nil {
		t.Fatalf("pipeline.New() failed: %v", err)
	}
	for _, m := range mods {
		if err := p.Add(m); err != nil {
			t.Fatalf("Add(%s) failed: %v", m.Name(), err)
		}
	}
	return p, g
}

func step(t *testing.T, p *pipeline.Pipeline, g *grid.SpatialGrid, dt float64) pipeline.TickReport {
	t.Helper()
	g.Rebuild()
	report, err := p.Step(dt)
	if err != nil {
		t.Fatalf("Step() failed: %v", err)
	}
	if report.Failed() {
		t.Fatalf("tick failed: %v", report.Err())
	}
	return report
}

func near(a, b r2.Vec) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps
}

func TestGravity(t *testing.T) {
	store := particle.NewStore(1)
	store.Add(particle.Particle{Mass: 1, Size: 1})

	grav := NewGravity("gravity")
	grav.Inputs().Set("strength", 10)
	p, g := newWorld(t, store, grav)
	step(t, p, g, 0.1)

	pt := store.At(0)
	if !near(pt.Velocity, r2.Vec{Y: 1}) || !near(pt.Position, r2.Vec{Y: 0.1}) {
		t.Errorf("v=%v p=%v, want v=(0,1) p=(0,0.1)", pt.Velocity, pt.Position)
	}
}

func TestDragOpposesVelocity(t *testing.T) {
	store := particle.NewStore(1)
	store.Add(particle.Particle{Mass: 1, Velocity: r2.Vec{X: 10, Y: -4}})

	drag := NewDrag("drag")
	drag.Inputs().Set("coefficient", 0.5)
	p, g := newWorld(t, store, drag)
	step(t, p, g, 0.1)

	if v := store.At(0).Velocity; !near(v, r2.Vec{X: 9.5, Y: -3.8}) {
		t.Errorf("velocity = %v, want (9.5, -3.8)", v)
	}
}

func TestTurbulenceDeterministic(t *testing.T) {
	run := func(seed float64) r2.Vec {
		store := particle.NewStore(1)
		store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: 13.7, Y: -42.1}})
		turb := NewTurbulence("turbulence")
		turb.Inputs().Set("seed", seed)
		p, g := newWorld(t, store, turb)
		for range 3 {
			step(t, p, g, 0.1)
		}
		return store.At(0).Velocity
	}

	a, b := run(3), run(3)
	if a != b {
		t.Errorf("same seed gave %v and %v", a, b)
	}
	speed := math.Hypot(a.X, a.Y)
	if speed == 0 || speed > 3*50*0.1+eps {
		t.Errorf("speed %v outside (0, %v]", speed, 3*50*0.1)
	}
}

func TestGravitationAttracts(t *testing.T) {
	store := particle.NewStore(2)
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: -10}})
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: 10}})
	store.Add(particle.Particle{Mass: -5, Position: r2.Vec{Y: 50}}) // pinned, ignored

	p, g := newWorld(t, store, NewGravitation("gravitation"))
	step(t, p, g, 0.1)

	left, right := store.At(0).Velocity, store.At(1).Velocity
	if !(left.X > 0) || !(right.X < 0) {
		t.Errorf("bodies not attracted: left %v right %v", left, right)
	}
	if math.Abs(left.X+right.X) > eps || math.Abs(left.Y) > eps {
		t.Errorf("equal masses should get equal and opposite pulls: %v %v", left, right)
	}
}

func TestGravitationSingleParticle(t *testing.T) {
	store := particle.NewStore(1)
	store.Add(particle.Particle{Mass: 1})
	p, g := newWorld(t, store, NewGravitation("gravitation"))
	step(t, p, g, 0.1)
	if v := store.At(0).Velocity; v != (r2.Vec{}) {
		t.Errorf("lone particle accelerated to %v", v)
	}
}

func TestGravitationCoincidentBodies(t *testing.T) {
	store := particle.NewStore(3)
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: 5, Y: 5}})
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: 5, Y: 5}})
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: 25, Y: 5}})

	p, g := newWorld(t, store, NewGravitation("gravitation"))
	for range 3 {
		step(t, p, g, 0.01)
	}

	a, b, c := store.At(0).Velocity, store.At(1).Velocity, store.At(2).Velocity
	if !(a.X > 0) || !(b.X > 0) || !(c.X < 0) {
		t.Errorf("bodies not attracted: %v %v %v", a, b, c)
	}
	if math.Abs(a.X-b.X) > eps {
		t.Errorf("coincident bodies pulled unequally: %v %v", a, b)
	}
	if m, _ := p.Module("gravitation"); !m.Enabled() {
		t.Error("gravitation disabled")
	}
}

func TestDensityPushesApart(t *testing.T) {
	store := particle.NewStore(3)
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: -2}})
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: 2}})
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: 100}}) // isolated

	dens := NewDensity("density")
	p, g := newWorld(t, store, dens)
	step(t, p, g, 0.1)

	if !(store.At(0).Velocity.X < 0) || !(store.At(1).Velocity.X > 0) {
		t.Errorf("pair not pushed apart: %v %v", store.At(0).Velocity, store.At(1).Velocity)
	}
	if v := store.At(2).Velocity; v != (r2.Vec{}) {
		t.Errorf("isolated particle moved: %v", v)
	}

	ch, ok := p.Board().Lookup(DensityChannel)
	if !ok {
		t.Fatal("density channel not declared")
	}
	// (1 - 4/12)^2
	if got, want := p.Board().Get(ch, 0), 4.0/9.0; math.Abs(got-want) > eps {
		t.Errorf("density = %v, want %v", got, want)
	}
}

func TestCollisionSeparates(t *testing.T) {
	tests := []struct {
		name       string
		massB      float64
		wantA      r2.Vec
		wantB      r2.Vec
		iterations int
	}{
		// Overlap 2 at stiffness 0.5: slot 0 closes half of it, slot 1
		// half of the remainder.
		{"equal masses", 1, r2.Vec{X: -0.75}, r2.Vec{X: 2.75}, 1},
		{"equal masses two passes", 1, r2.Vec{X: -0.9375}, r2.Vec{X: 2.9375}, 2},
		{"pinned neighbor", -1, r2.Vec{X: 0}, r2.Vec{X: 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := particle.NewStore(2)
			store.Add(particle.Particle{Mass: 1, Size: 2, Position: r2.Vec{X: 0}})
			store.Add(particle.Particle{Mass: tt.massB, Size: 2, Position: r2.Vec{X: 2}})

			p, g := newWorld(t, store, NewCollision("collision"))
			p.SetConstrainIterations(tt.iterations)
			step(t, p, g, 1e-6)

			a, b := store.At(0).Position, store.At(1).Position
			if math.Abs(a.X-tt.wantA.X) > 1e-3 || math.Abs(b.X-tt.wantB.X) > 1e-3 {
				t.Errorf("positions a=%v b=%v, want a=%v b=%v", a, b, tt.wantA, tt.wantB)
			}
		})
	}
}

func TestCollisionIgnoresPinned(t *testing.T) {
	store := particle.NewStore(2)
	store.Add(particle.Particle{Mass: 1, Size: 2})
	store.Add(particle.Particle{Mass: -1, Size: 2, Position: r2.Vec{X: 1}})

	p, g := newWorld(t, store, NewCollision("collision"))
	p.SetConstrainIterations(5)
	step(t, p, g, 1e-6)

	if a := store.At(0).Position; a != (r2.Vec{}) {
		t.Errorf("active particle pushed by pinned neighbor to %v", a)
	}
	if b := store.At(1).Position; b != (r2.Vec{X: 1}) {
		t.Errorf("pinned particle moved to %v", b)
	}
}

func TestCollisionCoincident(t *testing.T) {
	store := particle.NewStore(2)
	store.Add(particle.Particle{Mass: 1, Size: 1})
	store.Add(particle.Particle{Mass: 1, Size: 1})

	p, g := newWorld(t, store, NewCollision("collision"))
	step(t, p, g, 1e-6)

	a, b := store.At(0).Position, store.At(1).Position
	if !(a.X < b.X) {
		t.Errorf("coincident particles not separated along X: %v %v", a, b)
	}
	if math.IsNaN(a.X) || math.IsNaN(b.X) {
		t.Error("NaN position")
	}
}

func TestBoundsClampAndReflect(t *testing.T) {
	store := particle.NewStore(1)
	store.Add(particle.Particle{Mass: 1, Size: 1, Position: r2.Vec{X: 9.5}, Velocity: r2.Vec{X: 10}})

	b := NewBounds("bounds")
	for name, v := range map[string]float64{"minX": -10, "maxX": 10, "minY": -10, "maxY": 10, "restitution": 0.5} {
		if err := b.Inputs().Set(name, v); err != nil {
			t.Fatal(err)
		}
	}
	p, g := newWorld(t, store, b)
	step(t, p, g, 0.1)

	pt := store.At(0)
	if pt.Position.X != 9 {
		t.Errorf("x = %v, want 9", pt.Position.X)
	}
	if pt.Velocity.X != -5 {
		t.Errorf("vx = %v, want -5", pt.Velocity.X)
	}
}

func TestClampAxis(t *testing.T) {
	tests := []struct {
		name         string
		x, v, lo, hi float64
		wantX, wantV float64
	}{
		{"inside", 0, 3, -1, 1, 0, 3},
		{"below moving out", -2, -4, -1, 1, -1, 2},
		{"below moving in", -2, 4, -1, 1, -1, 4},
		{"above", 2, 4, -1, 1, 1, -2},
		{"box too small", 5, 1, 2, -2, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, v := clampAxis(tt.x, tt.v, tt.lo, tt.hi, 0.5)
			if x != tt.wantX || v != tt.wantV {
				t.Errorf("clampAxis = (%v, %v), want (%v, %v)", x, v, tt.wantX, tt.wantV)
			}
		})
	}
}

func TestTunnelingReflectsAtCrossing(t *testing.T) {
	store := particle.NewStore(1)
	// Moves from x=5 to x=25 in one tick; the wall is at x=10.
	store.Add(particle.Particle{Mass: 1, Position: r2.Vec{X: 5}, Velocity: r2.Vec{X: 200, Y: 100}})

	tun := NewTunneling("tunneling")
	for name, v := range map[string]float64{"minX": -10, "maxX": 10, "minY": -100, "maxY": 100, "restitution": 1} {
		tun.Inputs().Set(name, v)
	}
	p, g := newWorld(t, store, tun)
	step(t, p, g, 0.1)

	pt := store.At(0)
	if want := (r2.Vec{X: 10, Y: 2.5}); !near(pt.Position, want) {
		t.Errorf("position = %v, want %v", pt.Position, want)
	}
	if pt.Velocity != (r2.Vec{X: -200, Y: 100}) {
		t.Errorf("velocity = %v, want (-200, 100)", pt.Velocity)
	}
}

func TestTunnelingIgnoresInsideMoves(t *testing.T) {
	store := particle.NewStore(1)
	store.Add(particle.Particle{Mass: 1, Velocity: r2.Vec{X: 10}})
	p, g := newWorld(t, store, NewTunneling("tunneling"))
	step(t, p, g, 0.1)
	if pt := store.At(0); pt.Position.X != 1 || pt.Velocity.X != 10 {
		t.Errorf("inside move altered: %+v", pt)
	}
}

func TestBuild(t *testing.T) {
	off := false
	mods, err := Build([]config.ModuleConfig{
		{Type: "gravity", Inputs: map[string]float64{"strength": 3}},
		{Type: "drag", Name: "air", Enabled: &off},
	})
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("got %d modules", len(mods))
	}
	if mods[0].Name() != "gravity" || mods[0].Inputs().Get("strength") != 3 || !mods[0].Enabled() {
		t.Errorf("gravity built wrong: %s %v", mods[0].Name(), mods[0].Inputs().Snapshot())
	}
	if mods[1].Name() != "air" || mods[1].Enabled() {
		t.Errorf("drag built wrong: %s enabled=%v", mods[1].Name(), mods[1].Enabled())
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build([]config.ModuleConfig{{Type: "antigravity"}}); !errors.Is(err, ErrUnknownModule) {
		t.Errorf("unknown type error = %v", err)
	}
	_, err := Build([]config.ModuleConfig{{Type: "drag", Inputs: map[string]float64{"bogus": 1}}})
	if !errors.Is(err, pipeline.ErrUnknownInput) {
		t.Errorf("unknown input error = %v", err)
	}
}

func TestDefaultConfigBuilds(t *testing.T) {
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	mods, err := Build(cfg.Modules)
	if err != nil {
		t.Fatalf("default modules do not build: %v", err)
	}
	if len(mods) != len(Default().All()) {
		t.Errorf("defaults build %d modules, registry has %d", len(mods), len(Default().All()))
	}
}

func TestRegistryLabels(t *testing.T) {
	r := NewRegistry()
	if r.Label("gravitation") != "Gravitation" {
		t.Errorf("Label(gravitation) = %q", r.Label("gravitation"))
	}
	if r.Label("custom") != "custom" {
		t.Error("unknown type should fall back to itself")
	}
	r.Register(ModuleInfo{Type: "gravity", Label: "Down"})
	if len(r.All()) != 8 || r.Label("gravity") != "Down" {
		t.Errorf("re-register should replace in place: %d entries", len(r.All()))
	}
}

func BenchmarkDefaultModules(b *testing.B) {
	cfg, _ := config.Defaults()
	mods, _ := Build(cfg.Modules)
	rng := rand.New(rand.NewSource(1))
	store := particle.NewStore(4000)
	for range 4000 {
		store.Add(particle.Particle{
			Mass:     1,
			Size:     2,
			Position: r2.Vec{X: rng.Float64()*1000 - 500, Y: rng.Float64()*600 - 300},
		})
	}
	g, _ := grid.New(store, 16, grid.View{Width: 1280, Height: 800, Zoom: 1}, grid.DefaultOptions())
	p, _ := pipeline.New(store, g, pipeline.NewParallel(0), pipeline.DefaultConfig())
	defer p.Close()
	for _, m := range mods {
		p.Add(m)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Rebuild()
		p.Step(1.0 / 60)
	}
}
