package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Active int `csv:"active"`
	Pinned int `csv:"pinned"`

	// Speed distribution of active particles (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Total kinetic energy, 1/2 m v^2 over active particles
	KineticEnergy float64 `csv:"kinetic_energy"`

	// Events during window
	HookFailures    int `csv:"hook_failures"`
	GridReconfigs   int `csv:"grid_reconfigs"`
	PoolBuffersUsed int `csv:"pool_buffers"` // cell buffers handed out by the pool
}

// Percentile returns the p-th quantile of a sorted slice using the
// empirical distribution. p is clamped to [0, 1]. Returns 0 if the slice is
// empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(1, p))
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// SpeedSummary holds the distribution of a set of speeds.
type SpeedSummary struct {
	Mean, Std     float64
	P10, P50, P90 float64
	Max           float64
}

// ComputeSpeedStats calculates mean, std, max and percentiles. values is
// sorted in place.
func ComputeSpeedStats(values []float64) SpeedSummary {
	n := len(values)
	if n == 0 {
		return SpeedSummary{}
	}

	slices.Sort(values)
	var s SpeedSummary
	if n == 1 {
		s.Mean = values[0]
	} else {
		s.Mean, s.Std = stat.MeanStdDev(values, nil)
	}
	s.P10 = Percentile(values, 0.10)
	s.P50 = Percentile(values, 0.50)
	s.P90 = Percentile(values, 0.90)
	s.Max = values[n-1]
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("active", s.Active),
		slog.Int("pinned", s.Pinned),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Int("hook_failures", s.HookFailures),
		slog.Int("grid_reconfigs", s.GridReconfigs),
		slog.Int("pool_buffers", s.PoolBuffersUsed),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
