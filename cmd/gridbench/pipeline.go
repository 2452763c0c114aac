package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/sim"
	"github.com/pthm-cable/swarm/telemetry"
)

// pipelineResult holds the timings of one executor configuration.
type pipelineResult struct {
	Executor string
	Workers  int
	Ticks    int
	PerTick  time.Duration
	Perf     telemetry.PerfStats
}

func newPipelineCmd() *cobra.Command {
	var (
		ticks   int
		warmup  int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "time full ticks with the serial and parallel executors",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := loadBaseConfig()
			if err != nil {
				return err
			}
			var results []pipelineResult
			for _, exec := range []string{"serial", "parallel"} {
				cfg := base.Clone()
				cfg.Physics.Executor = exec
				cfg.Physics.Workers = workers
				r, err := benchPipeline(cfg, warmup, ticks)
				if err != nil {
					return err
				}
				results = append(results, r)
			}
			printPipelineResults(results)
			return nil
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 500, "timed ticks per executor")
	cmd.Flags().IntVar(&warmup, "warmup", 50, "untimed ticks before measuring")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = GOMAXPROCS)")
	return cmd
}

// benchPipeline runs a headless simulation and returns the mean tick time
// over the timed ticks.
func benchPipeline(cfg *config.Config, warmup, ticks int) (pipelineResult, error) {
	s, err := sim.New(cfg, sim.Options{Seed: seed})
	if err != nil {
		return pipelineResult{}, err
	}
	defer s.Close()

	for range warmup {
		if err := s.Step(); err != nil {
			return pipelineResult{}, err
		}
	}
	start := time.Now()
	for range ticks {
		if err := s.Step(); err != nil {
			return pipelineResult{}, err
		}
	}
	return pipelineResult{
		Executor: cfg.Physics.Executor,
		Workers:  s.Pipeline().Workers(),
		Ticks:    ticks,
		PerTick:  perOp(time.Since(start), ticks),
		Perf:     s.Perf().Stats(),
	}, nil
}

func printPipelineResults(results []pipelineResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := "executor\tworkers\tticks\tper tick"
	for _, phase := range telemetry.Phases {
		header += "\t" + phase + "%"
	}
	fmt.Fprintln(w, header)
	for _, r := range results {
		row := fmt.Sprintf("%s\t%d\t%d\t%s", r.Executor, r.Workers, r.Ticks, r.PerTick)
		for _, phase := range telemetry.Phases {
			row += fmt.Sprintf("\t%.1f", r.Perf.PhasePct[phase])
		}
		fmt.Fprintln(w, row)
	}
	w.Flush()
}
