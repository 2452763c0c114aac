package main

import (
	"github.com/pthm-cable/swarm/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Integer bool    // rounded before it is applied
}

// ParamVector holds the set of tunable grid parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the parameters the tune command searches over.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "cell_size", Path: "grid.cell_size", Min: 4, Max: 128, Default: 16},
			{Name: "padding_ratio", Path: "grid.padding_ratio", Min: 0, Max: 0.5, Default: 0.1},
			{Name: "workers", Path: "physics.workers", Min: 1, Max: 16, Default: 4, Integer: true},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp bounds every value and rounds the integer ones.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := min(spec.Max, max(spec.Min, v[i]))
		if spec.Integer {
			val = float64(int(val + 0.5))
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes parameter values into cfg, in Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	cfg.Grid.CellSize = clamped[0]
	cfg.Grid.PaddingRatio = clamped[1]
	cfg.Physics.Workers = int(clamped[2])
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Grid.CellSize,
		cfg.Grid.PaddingRatio,
		float64(cfg.Physics.Workers),
	}
}
