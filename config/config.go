// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Config holds all simulation configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Grid       GridConfig       `yaml:"grid"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Population PopulationConfig `yaml:"population"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Modules    []ModuleConfig   `yaml:"modules"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// GridConfig holds spatial grid parameters.
type GridConfig struct {
	CellSize     float64 `yaml:"cell_size"`
	PaddingRatio float64 `yaml:"padding_ratio"` // extra margin around the view, fraction of its larger side
	MaxPoolSize  int     `yaml:"max_pool_size"` // recycled cell buffers kept across reconfigures
	Hysteresis   float64 `yaml:"hysteresis"`    // zoom change needed to reconfigure
}

// PhysicsConfig holds pipeline parameters.
type PhysicsConfig struct {
	DT                  float64 `yaml:"dt"`
	ConstrainIterations int     `yaml:"constrain_iterations"`
	MaxNeighbors        int     `yaml:"max_neighbors"`
	Executor            string  `yaml:"executor"` // "serial" or "parallel"
	Workers             int     `yaml:"workers"`  // 0 = GOMAXPROCS
}

// PopulationConfig controls the initial particle spawn.
type PopulationConfig struct {
	Count   int     `yaml:"count"`
	Seed    int64   `yaml:"seed"`
	MinSize float64 `yaml:"min_size"`
	MaxSize float64 `yaml:"max_size"`
	MinMass float64 `yaml:"min_mass"`
	MaxMass float64 `yaml:"max_mass"`
	Speed   float64 `yaml:"speed"` // max initial speed
	Width   float64 `yaml:"width"` // spawn area, centered on the origin
	Height  float64 `yaml:"height"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`          // seconds of simulated time per stats row
	PerfCollectorWindow int     `yaml:"perf_collector_window"` // ticks in the rolling perf window
}

// ModuleConfig describes one force module.
type ModuleConfig struct {
	Type    string             `yaml:"type"`
	Name    string             `yaml:"name,omitempty"` // defaults to Type
	Enabled *bool              `yaml:"enabled,omitempty"`
	Inputs  map[string]float64 `yaml:"inputs,omitempty"`
}

// ModuleName returns Name, or Type when Name is empty.
func (m ModuleConfig) ModuleName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Type
}

// IsEnabled reports whether the module starts enabled. Unset means true.
func (m ModuleConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	StatsWindowTicks int     // Telemetry.StatsWindow converted to ticks
	ScreenW32        float32 // Screen.Width as float32
	ScreenH32        float32 // Screen.Height as float32
	WorldHalfW       float64 // half the spawn width
	WorldHalfH       float64 // half the spawn height
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. A modules list in the
// file replaces the default list.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

// Defaults returns the embedded defaults.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// Validate checks the values the simulation cannot clamp on its own.
func (c *Config) Validate() error {
	switch {
	case !(c.Grid.CellSize > 0) || math.IsInf(c.Grid.CellSize, 0):
		return fmt.Errorf("%w: grid.cell_size must be positive, got %v", ErrInvalid, c.Grid.CellSize)
	case c.Grid.PaddingRatio < 0:
		return fmt.Errorf("%w: grid.padding_ratio must be >= 0, got %v", ErrInvalid, c.Grid.PaddingRatio)
	case !(c.Physics.DT > 0) || math.IsInf(c.Physics.DT, 0):
		return fmt.Errorf("%w: physics.dt must be positive, got %v", ErrInvalid, c.Physics.DT)
	case c.Physics.ConstrainIterations < 0:
		return fmt.Errorf("%w: physics.constrain_iterations must be >= 0, got %d", ErrInvalid, c.Physics.ConstrainIterations)
	case c.Physics.MaxNeighbors <= 0:
		return fmt.Errorf("%w: physics.max_neighbors must be > 0, got %d", ErrInvalid, c.Physics.MaxNeighbors)
	case c.Physics.Executor != "serial" && c.Physics.Executor != "parallel":
		return fmt.Errorf("%w: physics.executor must be serial or parallel, got %q", ErrInvalid, c.Physics.Executor)
	case c.Population.Count < 0:
		return fmt.Errorf("%w: population.count must be >= 0, got %d", ErrInvalid, c.Population.Count)
	case c.Population.MinSize > c.Population.MaxSize:
		return fmt.Errorf("%w: population.min_size exceeds max_size", ErrInvalid)
	case c.Population.MinMass > c.Population.MaxMass:
		return fmt.Errorf("%w: population.min_mass exceeds max_mass", ErrInvalid)
	}
	for i, m := range c.Modules {
		if m.Type == "" {
			return fmt.Errorf("%w: modules[%d] has no type", ErrInvalid, i)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)

	// Spawn area defaults to screen size if not specified
	w := c.Population.Width
	if w == 0 {
		w = float64(c.Screen.Width)
	}
	h := c.Population.Height
	if h == 0 {
		h = float64(c.Screen.Height)
	}
	c.Derived.WorldHalfW = w / 2
	c.Derived.WorldHalfH = h / 2

	c.Derived.StatsWindowTicks = 1
	if c.Physics.DT > 0 && c.Telemetry.StatsWindow > 0 {
		c.Derived.StatsWindowTicks = max(1, int(math.Round(c.Telemetry.StatsWindow/c.Physics.DT)))
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Modules = make([]ModuleConfig, len(c.Modules))
	for i, m := range c.Modules {
		if m.Enabled != nil {
			enabled := *m.Enabled
			m.Enabled = &enabled
		}
		m.Inputs = maps.Clone(m.Inputs)
		out.Modules[i] = m
	}
	return &out
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
