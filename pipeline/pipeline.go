package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/grid"
	"github.com/pthm-cable/swarm/particle"
)

// Config holds the tunables of a pipeline.
type Config struct {
	ConstrainIterations int // passes of the constrain phase; 0 still runs one
	MaxNeighbors        int // cap on neighbors visited by ForEachNeighbor
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{ConstrainIterations: 5, MaxNeighbors: 64}
}

// PhaseObserver is told when each phase starts. telemetry.PerfCollector
// satisfies it.
type PhaseObserver interface {
	StartPhase(name string)
}

// Pipeline advances a particle store by one tick at a time.
type Pipeline struct {
	store *particle.Store
	grid  *grid.SpatialGrid
	exec  Executor
	cfg   Config

	modules []hooks
	byName  map[string]int
	board   *Blackboard

	tick     uint64
	prevPos  []r2.Vec
	contexts []Context

	failed   []atomic.Bool
	failMu   sync.Mutex
	failures []*HookError

	observer PhaseObserver
	logger   *slog.Logger
}

// New builds a pipeline over store and g. A nil exec runs serially.
func New(store *particle.Store, g *grid.SpatialGrid, exec Executor, cfg Config) (*Pipeline, error) {
	if store == nil || g == nil {
		return nil, ErrMissingCollaborator
	}
	if exec == nil {
		exec = Serial{}
	}
	p := &Pipeline{
		store:  store,
		grid:   g,
		exec:   exec,
		byName: make(map[string]int),
		board:  NewBlackboard(),
		logger: slog.Default(),
	}
	if err := p.SetConstrainIterations(cfg.ConstrainIterations); err != nil {
		return nil, err
	}
	if err := p.SetMaxNeighbors(cfg.MaxNeighbors); err != nil {
		return nil, err
	}
	p.resizeContexts()
	return p, nil
}

// Add appends a module. Modules run in the order they were added.
func (p *Pipeline) Add(m Module) error {
	if m == nil {
		return ErrNilModule
	}
	if _, ok := p.byName[m.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateModule, m.Name())
	}
	if bu, ok := m.(BoardUser); ok {
		bu.DeclareChannels(p.board)
	}
	p.byName[m.Name()] = len(p.modules)
	p.modules = append(p.modules, resolveHooks(m))
	p.failed = make([]atomic.Bool, len(p.modules))
	return nil
}

// Modules returns the modules in execution order.
func (p *Pipeline) Modules() []Module {
	out := make([]Module, len(p.modules))
	for i := range p.modules {
		out[i] = p.modules[i].m
	}
	return out
}

// Module looks a module up by name.
func (p *Pipeline) Module(name string) (Module, bool) {
	i, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return p.modules[i].m, true
}

// SetConstrainIterations sets the number of constrain passes per tick.
func (p *Pipeline) SetConstrainIterations(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidIterations, n)
	}
	p.cfg.ConstrainIterations = n
	return nil
}

// SetMaxNeighbors caps the neighbors a hook visits per particle.
func (p *Pipeline) SetMaxNeighbors(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxNeighbors, n)
	}
	p.cfg.MaxNeighbors = n
	for i := range p.contexts {
		p.contexts[i].maxNeighbors = n
	}
	return nil
}

// SetExecutor swaps the executor. The previous one is closed.
func (p *Pipeline) SetExecutor(e Executor) {
	if e == nil {
		e = Serial{}
	}
	if p.exec != nil {
		p.exec.Close()
	}
	p.exec = e
	p.resizeContexts()
}

// SetPhaseObserver installs o, or removes it when nil.
func (p *Pipeline) SetPhaseObserver(o PhaseObserver) { p.observer = o }

// SetLogger replaces the logger used for hook failures.
func (p *Pipeline) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Config returns the current tunables.
func (p *Pipeline) Config() Config { return p.cfg }

// Board returns the shared blackboard.
func (p *Pipeline) Board() *Blackboard { return p.board }

// Tick returns the number of completed ticks.
func (p *Pipeline) Tick() uint64 { return p.tick }

// Workers returns the executor's worker count.
func (p *Pipeline) Workers() int { return p.exec.Workers() }

// Close stops the executor's workers.
func (p *Pipeline) Close() { p.exec.Close() }

func (p *Pipeline) resizeContexts() {
	n := p.exec.Workers()
	if n < 1 {
		n = 1
	}
	p.contexts = make([]Context, n)
	for i := range p.contexts {
		p.contexts[i].maxNeighbors = p.cfg.MaxNeighbors
	}
}

// Step runs one tick: prepare, state, apply, integrate, constrain, correct.
// The grid must already reflect the current positions. A failing hook
// disables its module for the rest of the tick and is listed in the
// report; it never aborts the tick.
func (p *Pipeline) Step(dt float64) (TickReport, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return TickReport{}, fmt.Errorf("%w: got %v", ErrInvalidTimestep, dt)
	}

	p.tick++
	for i := range p.failed {
		p.failed[i].Store(false)
	}
	p.failures = p.failures[:0]

	n := p.store.Len()
	p.board.Resize(n)
	p.board.Reset()
	if cap(p.prevPos) < n {
		p.prevPos = make([]r2.Vec, n)
	}
	p.prevPos = p.prevPos[:n]
	for i := range p.contexts {
		c := &p.contexts[i]
		c.Tick = p.tick
		c.Board = p.board
		c.Store = p.store
		c.Grid = p.grid
		c.PrevPos, c.PostPos = r2.Vec{}, r2.Vec{}
	}

	p.startPhase(PhasePrepare)
	p.prepare()

	p.startPhase(PhaseState)
	p.sweep(PhaseState, dt)

	p.startPhase(PhaseApply)
	p.sweep(PhaseApply, dt)

	p.startPhase(PhaseIntegrate)
	active := p.integrate(dt)

	p.startPhase(PhaseConstrain)
	p.constrain(dt)

	p.startPhase(PhaseCorrect)
	p.sweep(PhaseCorrect, dt)

	report := TickReport{Tick: p.tick, Active: active}
	if len(p.failures) > 0 {
		report.Failures = slices.Clone(p.failures)
	}
	return report, nil
}

func (p *Pipeline) startPhase(ph Phase) {
	if p.observer != nil {
		p.observer.StartPhase(ph.String())
	}
}

func (p *Pipeline) runnable(mi int, ph Phase) bool {
	h := &p.modules[mi]
	return h.has(ph) && h.m.Enabled() && !p.failed[mi].Load()
}

func (p *Pipeline) prepare() {
	for mi := range p.modules {
		if !p.runnable(mi, PhasePrepare) {
			continue
		}
		if err := callPrepare(p.modules[mi].prepare, p.store); err != nil {
			p.recordFailure(mi, PhasePrepare, -1, err)
		}
	}
}

// sweep runs one per-particle phase for every module through the executor.
// Modules run one after another, so a module sees every earlier module's
// writes for all particles.
func (p *Pipeline) sweep(ph Phase, dt float64) {
	n := p.store.Len()
	for mi := range p.modules {
		if !p.runnable(mi, ph) {
			continue
		}
		p.exec.Run(n, func(worker, lo, hi int) {
			p.sweepRange(mi, ph, &p.contexts[worker], lo, hi, dt)
		})
	}
}

func (p *Pipeline) sweepRange(mi int, ph Phase, c *Context, lo, hi int, dt float64) {
	h := &p.modules[mi]
	items := p.store.Items()
	values := h.m.Inputs()
	for i := lo; i < hi; i++ {
		pt := &items[i]
		if pt.Mass <= 0 {
			continue
		}
		if p.failed[mi].Load() {
			return
		}
		c.bind(i, pt, values, dt)
		if ph == PhaseCorrect {
			c.PrevPos = p.prevPos[i]
			c.PostPos = pt.Position
		}
		if err := callHook(h, ph, c); err != nil {
			p.recordFailure(mi, ph, i, err)
			return
		}
	}
}

// integrate applies semi-implicit Euler and clears accelerations.
func (p *Pipeline) integrate(dt float64) int {
	items := p.store.Items()
	active := 0
	for i := range items {
		pt := &items[i]
		if pt.Mass <= 0 {
			continue
		}
		active++
		p.prevPos[i] = pt.Position
		pt.Velocity = r2.Add(pt.Velocity, r2.Scale(dt, pt.Acceleration))
		pt.Position = r2.Add(pt.Position, r2.Scale(dt, pt.Velocity))
		pt.Acceleration = r2.Vec{}
	}
	return active
}

// constrain runs the constrain hooks serially. Each pass visits every
// module, and each module visits every particle, in slot order.
func (p *Pipeline) constrain(dt float64) {
	iterations := max(1, p.cfg.ConstrainIterations)
	c := &p.contexts[0]
	n := p.store.Len()
	for range iterations {
		for mi := range p.modules {
			if !p.runnable(mi, PhaseConstrain) {
				continue
			}
			p.sweepRange(mi, PhaseConstrain, c, 0, n, dt)
		}
	}
}

func (p *Pipeline) recordFailure(mi int, ph Phase, index int, err error) {
	if !p.failed[mi].CompareAndSwap(false, true) {
		return
	}
	herr := &HookError{
		Module: p.modules[mi].m.Name(),
		Phase:  ph,
		Index:  index,
		Tick:   p.tick,
		Err:    err,
	}
	p.failMu.Lock()
	p.failures = append(p.failures, herr)
	p.failMu.Unlock()

	p.logger.Warn("module disabled for tick",
		"module", herr.Module,
		"phase", ph.String(),
		"particle", index,
		"tick", p.tick,
		"error", err,
	)
}

func callHook(h *hooks, ph Phase, c *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanic, r)
		}
	}()
	switch ph {
	case PhaseState:
		return h.state.State(c)
	case PhaseApply:
		return h.apply.Apply(c)
	case PhaseConstrain:
		return h.constrain.Constrain(c)
	case PhaseCorrect:
		return h.correct.Correct(c)
	}
	return nil
}

func callPrepare(pr Preparer, store *particle.Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanic, r)
		}
	}()
	return pr.Prepare(store)
}
