// Package main provides benchmarks and parameter tuning for the spatial grid
// and the particle pipeline.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/swarm/config"
)

var (
	configPath string
	particles  int
	seed       int64
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridbench",
		Short: "spatial grid and pipeline benchmarks",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "base config YAML file (empty = use defaults)")
	rootCmd.PersistentFlags().IntVar(&particles, "particles", 0, "population size (0 = config value)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "population seed")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newGridCmd(), newPipelineCmd(), newTuneCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadBaseConfig loads the config named by --config and applies --particles.
func loadBaseConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.Defaults()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if particles > 0 {
		cfg.Population.Count = particles
	}
	return cfg, nil
}

// perOp returns the mean duration of one of n operations.
func perOp(total time.Duration, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return total / time.Duration(n)
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
