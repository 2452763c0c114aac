// Package pipeline runs one simulation tick as five ordered phases over the
// enabled force modules: state, apply, integrate, constrain, correct.
package pipeline

import "github.com/pthm-cable/swarm/particle"

// Phase identifies a stage of the tick.
type Phase int

// Tick phases in execution order. PhasePrepare runs once per module before
// the per-particle phases.
const (
	PhasePrepare Phase = iota
	PhaseState
	PhaseApply
	PhaseIntegrate
	PhaseConstrain
	PhaseCorrect
)

var phaseNames = [...]string{
	PhasePrepare:   "prepare",
	PhaseState:     "state",
	PhaseApply:     "apply",
	PhaseIntegrate: "integrate",
	PhaseConstrain: "constrain",
	PhaseCorrect:   "correct",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Module is a force contributing to the simulation. Hooks are optional and
// discovered through the StateHook, ApplyHook, ConstrainHook, CorrectHook
// and Preparer interfaces.
type Module interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	Inputs() *Inputs
}

// StateHook writes per-particle scratch values to the blackboard. It must
// only write the slot of c.Index.
type StateHook interface {
	State(c *Context) error
}

// ApplyHook accumulates into c.P.Acceleration.
type ApplyHook interface {
	Apply(c *Context) error
}

// ConstrainHook adjusts positions and velocities after integration. It runs
// ConstrainIterations times per tick, always serially.
type ConstrainHook interface {
	Constrain(c *Context) error
}

// CorrectHook sees the full displacement of the tick through c.PrevPos and
// c.PostPos. It must only modify c.P.
type CorrectHook interface {
	Correct(c *Context) error
}

// Preparer builds per-tick structures before any particle hook runs.
type Preparer interface {
	Prepare(store *particle.Store) error
}

// BoardUser declares the blackboard channels a module reads or writes.
type BoardUser interface {
	DeclareChannels(b *Blackboard)
}

// Base implements the bookkeeping half of Module. Embed it in force types.
type Base struct {
	name    string
	enabled bool
	inputs  *Inputs
}

// NewBase returns an enabled Base with no inputs.
func NewBase(name string) Base {
	return Base{name: name, enabled: true, inputs: NewInputs()}
}

// Name returns the module name.
func (b *Base) Name() string { return b.name }

// Enabled reports whether the module takes part in ticks.
func (b *Base) Enabled() bool { return b.enabled }

// SetEnabled toggles the module.
func (b *Base) SetEnabled(enabled bool) { b.enabled = enabled }

// Inputs returns the module's named uniforms.
func (b *Base) Inputs() *Inputs { return b.inputs }

// hooks caches the optional interfaces of a module.
type hooks struct {
	m         Module
	prepare   Preparer
	state     StateHook
	apply     ApplyHook
	constrain ConstrainHook
	correct   CorrectHook
}

func resolveHooks(m Module) hooks {
	h := hooks{m: m}
	h.prepare, _ = m.(Preparer)
	h.state, _ = m.(StateHook)
	h.apply, _ = m.(ApplyHook)
	h.constrain, _ = m.(ConstrainHook)
	h.correct, _ = m.(CorrectHook)
	return h
}

func (h *hooks) has(ph Phase) bool {
	switch ph {
	case PhasePrepare:
		return h.prepare != nil
	case PhaseState:
		return h.state != nil
	case PhaseApply:
		return h.apply != nil
	case PhaseConstrain:
		return h.constrain != nil
	case PhaseCorrect:
		return h.correct != nil
	}
	return false
}
