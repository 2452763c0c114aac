package main

import (
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/swarm/sim"
)

// gridResult holds the timings of one grid benchmark run.
type gridResult struct {
	Particles  int
	Cols, Rows int
	Rebuild    time.Duration // mean per rebuild
	Query      time.Duration // mean per radius query
	MeanHits   float64
	Truncated  int
}

func newGridCmd() *cobra.Command {
	var (
		rebuilds int
		queries  int
		radius   float64
		maxHits  int
	)
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "time grid rebuilds and radius queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadBaseConfig()
			if err != nil {
				return err
			}
			s, err := sim.New(cfg, sim.Options{Seed: seed})
			if err != nil {
				return err
			}
			defer s.Close()

			res := benchGrid(s, rebuilds, queries, radius, maxHits)
			printGridResult(res)
			return nil
		},
	}
	cmd.Flags().IntVar(&rebuilds, "rebuilds", 200, "number of full rebuilds")
	cmd.Flags().IntVar(&queries, "queries", 10000, "number of radius queries")
	cmd.Flags().Float64Var(&radius, "radius", 32, "query radius in world units")
	cmd.Flags().IntVar(&maxHits, "max-results", 0, "result cap per query (0 = unlimited)")
	return cmd
}

// benchGrid times rebuilds of the simulation's grid, then queries at random
// points inside the spawn area.
func benchGrid(s *sim.Simulation, rebuilds, queries int, radius float64, maxHits int) gridResult {
	g := s.Grid()
	cols, rows := g.Dims()
	res := gridResult{Particles: s.Store().Live(), Cols: cols, Rows: rows}

	start := time.Now()
	for range rebuilds {
		g.Rebuild()
	}
	res.Rebuild = perOp(time.Since(start), rebuilds)
	if rebuilds == 0 {
		g.Rebuild()
	}

	cfg := s.Config()
	rng := rand.New(rand.NewSource(seed))
	centers := make([]r2.Vec, queries)
	for i := range centers {
		centers[i] = r2.Vec{
			X: (rng.Float64()*2 - 1) * cfg.Derived.WorldHalfW,
			Y: (rng.Float64()*2 - 1) * cfg.Derived.WorldHalfH,
		}
	}

	hits := make([]float64, queries)
	var buf []int
	start = time.Now()
	for i, c := range centers {
		var truncated bool
		buf, truncated = g.GetParticlesInRadiusInto(buf[:0], c, radius, maxHits)
		hits[i] = float64(len(buf))
		if truncated {
			res.Truncated++
		}
	}
	res.Query = perOp(time.Since(start), queries)
	if queries > 0 {
		res.MeanHits = stat.Mean(hits, nil)
	}
	return res
}

func printGridResult(r gridResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "particles\t%d\n", r.Particles)
	fmt.Fprintf(w, "cells\t%dx%d\n", r.Cols, r.Rows)
	fmt.Fprintf(w, "rebuild\t%s\n", r.Rebuild)
	fmt.Fprintf(w, "query\t%s\n", r.Query)
	fmt.Fprintf(w, "mean hits\t%.2f\n", r.MeanHits)
	fmt.Fprintf(w, "truncated\t%d\n", r.Truncated)
	w.Flush()
}
