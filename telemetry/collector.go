// Package telemetry provides simulation health tracking, bookmarking and
// performance collection.
package telemetry

import (
	"math"

	"github.com/pthm-cable/swarm/particle"
)

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float64

	// Current window tracking
	windowStartTick int64

	// Event counters for current window
	hookFailures  int
	gridReconfigs int

	speeds []float64 // scratch reused across flushes
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int64(1)
	if dt > 0 {
		ticksPerWindow = max(1, int64(math.Round(windowDurationSec/dt)))
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordHookFailures adds the failures reported by one tick.
func (c *Collector) RecordHookFailures(n int) {
	c.hookFailures += n
}

// RecordGridReconfig records a grid reconfiguration.
func (c *Collector) RecordGridReconfig() {
	c.gridReconfigs++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats from the store and resets counters for the
// next window. poolBuffers is the grid pool's allocation count.
func (c *Collector) Flush(currentTick int64, store *particle.Store, poolBuffers int) WindowStats {
	c.speeds = c.speeds[:0]
	var active, pinned int
	var kinetic float64
	for i := range store.Items() {
		p := store.At(i)
		switch {
		case p.Mass > 0:
			active++
			v2 := p.Velocity.X*p.Velocity.X + p.Velocity.Y*p.Velocity.Y
			kinetic += 0.5 * p.Mass * v2
			c.speeds = append(c.speeds, math.Sqrt(v2))
		case p.Mass < 0:
			pinned++
		}
	}
	speed := ComputeSpeedStats(c.speeds)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Active: active,
		Pinned: pinned,

		SpeedMean: speed.Mean,
		SpeedStd:  speed.Std,
		SpeedP10:  speed.P10,
		SpeedP50:  speed.P50,
		SpeedP90:  speed.P90,
		SpeedMax:  speed.Max,

		KineticEnergy: kinetic,

		HookFailures:    c.hookFailures,
		GridReconfigs:   c.gridReconfigs,
		PoolBuffersUsed: poolBuffers,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.hookFailures = 0
	c.gridReconfigs = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
