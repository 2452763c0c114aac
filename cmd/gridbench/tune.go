package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/optimize"
)

// tuneRecord is one row of tune_log.csv.
type tuneRecord struct {
	Eval         int     `csv:"eval"`
	TickUS       float64 `csv:"tick_us"`
	StdUS        float64 `csv:"std_us"`
	CellSize     float64 `csv:"cell_size"`
	PaddingRatio float64 `csv:"padding_ratio"`
	Workers      int     `csv:"workers"`
}

// tuneLog appends tuneRecords to a CSV file.
type tuneLog struct {
	f             *os.File
	headerWritten bool
}

func (l *tuneLog) append(rec tuneRecord) error {
	recs := []tuneRecord{rec}
	if l.headerWritten {
		return gocsv.MarshalWithoutHeaders(recs, l.f)
	}
	if err := gocsv.Marshal(recs, l.f); err != nil {
		return err
	}
	l.headerWritten = true
	return nil
}

func newTuneCmd() *cobra.Command {
	var (
		outputDir  string
		numSeeds   int
		maxEvals   int
		population int
		ticks      int
		warmup     int
	)
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "search grid and executor parameters for the fastest tick with CMA-ES",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				return errors.New("--output is required")
			}
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			baseCfg, err := loadBaseConfig()
			if err != nil {
				return err
			}
			return runTune(tuneOptions{
				outputDir:  outputDir,
				seeds:      numSeeds,
				maxEvals:   maxEvals,
				population: population,
				ticks:      ticks,
				warmup:     warmup,
			}, NewTickEvaluator(NewParamVector(), warmup, ticks, evalSeeds(numSeeds), baseCfg))
		},
	}
	cmd.Flags().StringVar(&outputDir, "output", "", "output directory for results")
	cmd.Flags().IntVar(&numSeeds, "seeds", 3, "number of seeds per evaluation")
	cmd.Flags().IntVar(&maxEvals, "max-evals", 60, "maximum number of evaluations")
	cmd.Flags().IntVar(&population, "population", 0, "CMA-ES population size (0 = auto)")
	cmd.Flags().IntVar(&ticks, "ticks", 200, "timed ticks per run")
	cmd.Flags().IntVar(&warmup, "warmup", 20, "untimed ticks per run")
	return cmd
}

type tuneOptions struct {
	outputDir  string
	seeds      int
	maxEvals   int
	population int
	ticks      int
	warmup     int
}

// evalSeeds derives n seeds from --seed.
func evalSeeds(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = seed + int64(i)*1000
	}
	return out
}

func runTune(opts tuneOptions, evaluator *TickEvaluator) error {
	params := evaluator.params
	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	logFile, err := os.Create(filepath.Join(opts.outputDir, "tune_log.csv"))
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()
	log := &tuneLog{f: logFile}

	popSize := opts.population
	if popSize == 0 {
		// 4 + floor(3*ln(n))
		popSize = 4 + int(3*math.Log(float64(dim)))
	}

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			fitness := evaluator.Evaluate(raw)
			evalCount++

			clamped := params.Clamp(raw)
			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			rec := tuneRecord{
				Eval:         evalCount,
				TickUS:       fitness,
				StdUS:        evaluator.LastStd(),
				CellSize:     clamped[0],
				PaddingRatio: clamped[1],
				Workers:      int(clamped[2]),
			}
			if err := log.append(rec); err != nil {
				slog.Error("failed to write tune log", "error", err)
			}

			elapsed := time.Since(startTime)
			remaining := time.Duration(opts.maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			fmt.Printf("Eval %d/%d: tick=%.1fus (best=%.1fus) | elapsed: %s, ETA: %s\n",
				evalCount, opts.maxEvals, fitness, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))
			return fitness
		},
	}

	settings := &optimize.Settings{FuncEvaluations: opts.maxEvals}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	fmt.Printf("Starting CMA-ES tuning with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, opts.maxEvals)
	fmt.Printf("Seeds per evaluation: %d, ticks per run: %d (+%d warmup)\n", opts.seeds, opts.ticks, opts.warmup)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("tuning ended", "error", err)
	}
	if bestParams == nil {
		if result == nil {
			return errors.New("no evaluation completed")
		}
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if n := evaluator.Failures(); n > 0 {
		slog.Warn("some runs failed", "count", n)
	}

	fmt.Printf("\nTuning complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best tick: %.1fus\n", bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.4f\n", spec.Path, bestParams[i])
	}

	bestCfg := evaluator.baseConfig.Clone()
	bestCfg.Physics.Executor = "parallel"
	params.ApplyToConfig(bestCfg, bestParams)
	configOutPath := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}
	fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	return nil
}
