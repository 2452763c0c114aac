// Package forces provides the built-in force modules and a config-driven
// factory for them.
package forces

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/pipeline"
)

// ErrUnknownModule is returned by Build for a type with no registered constructor.
var ErrUnknownModule = errors.New("forces: unknown module type")

// ModuleInfo describes a force module type for the factory and the UI.
type ModuleInfo struct {
	Type        string // identifier used in config
	Label       string // display name
	Description string // what the module does
	Category    string // grouping, e.g. "field" or "constraint"
	New         func(name string) pipeline.Module
}

// Registry holds every known module type.
type Registry struct {
	modules []ModuleInfo
	byType  map[string]ModuleInfo
}

// NewRegistry creates a registry with all built-in modules.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]ModuleInfo)}
	r.registerDefaults()
	return r
}

// registerDefaults adds the built-in modules.
func (r *Registry) registerDefaults() {
	// Fields
	r.Register(ModuleInfo{Type: "gravity", Label: "Gravity", Description: "Constant acceleration along a direction", Category: "field",
		New: func(name string) pipeline.Module { return NewGravity(name) }})
	r.Register(ModuleInfo{Type: "drag", Label: "Drag", Description: "Velocity-proportional damping", Category: "field",
		New: func(name string) pipeline.Module { return NewDrag(name) }})
	r.Register(ModuleInfo{Type: "turbulence", Label: "Turbulence", Description: "Perlin flow field", Category: "field",
		New: func(name string) pipeline.Module { return NewTurbulence(name) }})

	// Interactions
	r.Register(ModuleInfo{Type: "gravitation", Label: "Gravitation", Description: "Barnes-Hut N-body attraction", Category: "interaction",
		New: func(name string) pipeline.Module { return NewGravitation(name) }})
	r.Register(ModuleInfo{Type: "density", Label: "Density", Description: "Pressure away from crowded regions", Category: "interaction",
		New: func(name string) pipeline.Module { return NewDensity(name) }})

	// Constraints
	r.Register(ModuleInfo{Type: "collision", Label: "Collision", Description: "Resolves overlapping particles", Category: "constraint",
		New: func(name string) pipeline.Module { return NewCollision(name) }})
	r.Register(ModuleInfo{Type: "bounds", Label: "Bounds", Description: "Keeps particles inside a box", Category: "constraint",
		New: func(name string) pipeline.Module { return NewBounds(name) }})
	r.Register(ModuleInfo{Type: "tunneling", Label: "Tunneling", Description: "Stops particles crossing box walls in one tick", Category: "constraint",
		New: func(name string) pipeline.Module { return NewTunneling(name) }})
}

// Register adds a module type, replacing any previous entry for the same type.
func (r *Registry) Register(info ModuleInfo) {
	if _, ok := r.byType[info.Type]; !ok {
		r.modules = append(r.modules, info)
	} else {
		for i := range r.modules {
			if r.modules[i].Type == info.Type {
				r.modules[i] = info
			}
		}
	}
	r.byType[info.Type] = info
}

// Get returns module info by type.
func (r *Registry) Get(typ string) (ModuleInfo, bool) {
	info, ok := r.byType[typ]
	return info, ok
}

// Label returns the display name for a type.
// Falls back to the type itself if not found.
func (r *Registry) Label(typ string) string {
	if info, ok := r.byType[typ]; ok {
		return info.Label
	}
	return typ
}

// All returns module infos in registration order.
func (r *Registry) All() []ModuleInfo {
	return r.modules
}

// Build constructs modules from config entries, in order.
func (r *Registry) Build(cfgs []config.ModuleConfig) ([]pipeline.Module, error) {
	mods := make([]pipeline.Module, 0, len(cfgs))
	for _, mc := range cfgs {
		info, ok := r.byType[mc.Type]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModule, mc.Type)
		}
		m := info.New(mc.ModuleName())
		m.SetEnabled(mc.IsEnabled())
		for name, v := range mc.Inputs {
			if err := m.Inputs().Set(name, v); err != nil {
				return nil, fmt.Errorf("module %s: %w", m.Name(), err)
			}
		}
		mods = append(mods, m)
	}
	return mods, nil
}

var defaultRegistry = NewRegistry()

// Build constructs modules with the built-in registry.
func Build(cfgs []config.ModuleConfig) ([]pipeline.Module, error) {
	return defaultRegistry.Build(cfgs)
}

// Default returns the built-in registry.
func Default() *Registry { return defaultRegistry }
