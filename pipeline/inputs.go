package pipeline

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrUnknownInput is returned when setting an input a module never declared.
var ErrUnknownInput = errors.New("pipeline: unknown input")

// ErrInvalidInput is returned for NaN or infinite input values.
var ErrInvalidInput = errors.New("pipeline: input must be finite")

// Inputs holds a module's named numeric uniforms.
type Inputs struct {
	names  []string
	values map[string]*float64
}

// NewInputs returns an empty input set.
func NewInputs() *Inputs {
	return &Inputs{values: make(map[string]*float64)}
}

// Declare adds an input with its default value. Redeclaring resets the value.
func (in *Inputs) Declare(name string, def float64) *Inputs {
	if v, ok := in.values[name]; ok {
		*v = def
		return in
	}
	v := def
	in.values[name] = &v
	in.names = append(in.names, name)
	return in
}

// Get returns the value of name, or 0 when it was never declared.
func (in *Inputs) Get(name string) float64 {
	if v, ok := in.values[name]; ok {
		return *v
	}
	return 0
}

// Ref returns a stable pointer to the value of name, or nil. Modules use it
// to avoid map lookups in per-particle hooks.
func (in *Inputs) Ref(name string) *float64 {
	return in.values[name]
}

// Set updates a declared input.
func (in *Inputs) Set(name string, value float64) error {
	v, ok := in.values[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInput, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidInput, name, value)
	}
	*v = value
	return nil
}

// Has reports whether name was declared.
func (in *Inputs) Has(name string) bool {
	_, ok := in.values[name]
	return ok
}

// Names returns the declared names in declaration order.
func (in *Inputs) Names() []string {
	return slices.Clone(in.names)
}

// Snapshot copies every value into a map.
func (in *Inputs) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(in.values))
	for name, v := range in.values {
		out[name] = *v
	}
	return out
}
