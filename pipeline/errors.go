package pipeline

import (
	"errors"
	"fmt"
)

// Configuration errors, returned by constructors and setters.
var (
	ErrInvalidTimestep     = errors.New("pipeline: dt must be positive and finite")
	ErrInvalidIterations   = errors.New("pipeline: constrain iterations must be >= 0")
	ErrInvalidMaxNeighbors = errors.New("pipeline: max neighbors must be > 0")
	ErrDuplicateModule     = errors.New("pipeline: duplicate module name")
	ErrNilModule           = errors.New("pipeline: nil module")
	ErrMissingCollaborator = errors.New("pipeline: store and grid are required")
)

// ErrHookPanic wraps a panic recovered from a module hook.
var ErrHookPanic = errors.New("pipeline: hook panicked")

// HookError records a hook failure. The failing module is skipped for the
// rest of the tick.
type HookError struct {
	Module string
	Phase  Phase
	Index  int // particle slot, -1 for prepare
	Tick   uint64
	Err    error
}

func (e *HookError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("tick %d: module %s %s: %v", e.Tick, e.Module, e.Phase, e.Err)
	}
	return fmt.Sprintf("tick %d: module %s %s particle %d: %v", e.Tick, e.Module, e.Phase, e.Index, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// TickReport summarizes one tick.
type TickReport struct {
	Tick     uint64
	Active   int          // particles that went through the phases
	Failures []*HookError // at most one per module
}

// Failed reports whether any hook failed during the tick.
func (r TickReport) Failed() bool { return len(r.Failures) > 0 }

// Err joins the failures into a single error, or returns nil.
func (r TickReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
