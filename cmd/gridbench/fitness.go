package main

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/sim"
)

// TickEvaluator runs headless simulations and scores a parameter vector by
// its mean wall-clock tick time in microseconds.
type TickEvaluator struct {
	params     *ParamVector
	warmup     int
	ticks      int
	seeds      []int64
	baseConfig *config.Config

	mu       sync.Mutex
	lastStd  float64 // spread across seeds of the most recent Evaluate call
	failures int
}

// NewTickEvaluator creates a new evaluator.
func NewTickEvaluator(params *ParamVector, warmup, ticks int, seeds []int64, baseCfg *config.Config) *TickEvaluator {
	return &TickEvaluator{
		params:     params,
		warmup:     warmup,
		ticks:      ticks,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastStd returns the per-seed standard deviation of the most recent evaluation.
func (te *TickEvaluator) LastStd() float64 {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.lastStd
}

// Failures returns how many runs failed to build or step.
func (te *TickEvaluator) Failures() int {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.failures
}

// Evaluate returns the mean tick time for x (lower = better). Seeds run one
// after another so runs do not compete for cores. A failed run scores +Inf.
func (te *TickEvaluator) Evaluate(x []float64) float64 {
	cfg := te.baseConfig.Clone()
	cfg.Physics.Executor = "parallel"
	te.params.ApplyToConfig(cfg, x)

	perSeed := make([]float64, 0, len(te.seeds))
	for _, sd := range te.seeds {
		us, err := te.runOnce(cfg, sd)
		if err != nil {
			te.mu.Lock()
			te.failures++
			te.mu.Unlock()
			return math.Inf(1)
		}
		perSeed = append(perSeed, us)
	}

	mean, std := stat.MeanStdDev(perSeed, nil)
	if len(perSeed) < 2 {
		std = 0
	}
	te.mu.Lock()
	te.lastStd = std
	te.mu.Unlock()
	return mean
}

// runOnce returns the mean microseconds per timed tick for one seed.
func (te *TickEvaluator) runOnce(cfg *config.Config, sd int64) (float64, error) {
	s, err := sim.New(cfg, sim.Options{Seed: sd})
	if err != nil {
		return 0, err
	}
	defer s.Close()

	for range te.warmup {
		if err := s.Step(); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	for range te.ticks {
		if err := s.Step(); err != nil {
			return 0, err
		}
	}
	return float64(perOp(time.Since(start), te.ticks)) / float64(time.Microsecond), nil
}
