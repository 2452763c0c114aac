package sim

import (
	"context"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/grid"
)

type queryRequest struct {
	ctx        context.Context
	center     r2.Vec
	radius     float64
	maxResults int
	out        chan grid.QueryResult
}

// Query answers a disc-intersection query against the current positions.
// It must be called from the simulation goroutine.
func (s *Simulation) Query(center r2.Vec, radius float64, maxResults int) grid.QueryResult {
	if !s.gridFresh {
		s.syncGrid()
	}
	return s.grid.GetParticlesInRadius(center, radius, maxResults)
}

// QueryAsync queues a disc-intersection query. It is answered between
// ticks by the goroutine driving Step or Run, so a driver loop is required.
// The channel receives at most one result and is then closed; it is closed
// without a result when ctx is cancelled first or the simulation is closed.
func (s *Simulation) QueryAsync(ctx context.Context, center r2.Vec, radius float64, maxResults int) <-chan grid.QueryResult {
	out := make(chan grid.QueryResult, 1)
	req := queryRequest{ctx: ctx, center: center, radius: radius, maxResults: maxResults, out: out}
	go func() {
		select {
		case <-s.done:
			close(out)
			return
		default:
		}
		select {
		case s.queries <- req:
			// Close may have drained the queue before this send landed.
			select {
			case <-s.done:
				s.dropQueries()
			default:
			}
		case <-ctx.Done():
			close(out)
		case <-s.done:
			close(out)
		}
	}()
	return out
}

// dropQueries closes every queued query without answering it.
func (s *Simulation) dropQueries() {
	for {
		select {
		case req := <-s.queries:
			close(req.out)
		default:
			return
		}
	}
}

// serveQueries answers every queued query without blocking.
func (s *Simulation) serveQueries() {
	for {
		select {
		case req := <-s.queries:
			s.serve(req)
		default:
			return
		}
	}
}

func (s *Simulation) serve(req queryRequest) {
	defer close(req.out)
	if req.ctx.Err() != nil {
		return
	}
	req.out <- s.Query(req.center, req.radius, req.maxResults)
}
