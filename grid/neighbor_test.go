package grid

import (
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/swarm/particle"
)

// cellGridStore puts one particle at the center of five known cells of the
// 4x4 smallView grid.
func cellGridStore() *particle.Store {
	store := particle.NewStore(5)
	for _, pos := range []r2.Vec{
		{X: 8, Y: 8},   // 0: cell (0,0)
		{X: 24, Y: 8},  // 1: cell (1,0)
		{X: 8, Y: 24},  // 2: cell (0,1)
		{X: 56, Y: 56}, // 3: cell (3,3)
		{X: 40, Y: 40}, // 4: cell (2,2)
	} {
		store.Add(particle.Particle{Mass: 1, Position: pos})
	}
	return store
}

func drain(it *NeighborIterator, exclude int) []int {
	var out []int
	for {
		i, ok := it.Next(exclude)
		if !ok {
			return out
		}
		out = append(out, i)
	}
}

func TestNeighborIteratorRowMajorOrder(t *testing.T) {
	g := newTestGrid(t, cellGridStore(), 16, smallView, 0)
	g.Rebuild()

	it := g.Neighbors(r2.Vec{X: 8, Y: 8}, 16)
	got := drain(&it, -1)

	// Window is cols 0..1, rows 0..1: (0,0) then (1,0) then (0,1).
	if !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("got %v, want [0 1 2]", got)
	}
}

func TestNeighborIteratorExcludesSelf(t *testing.T) {
	g := newTestGrid(t, cellGridStore(), 16, smallView, 0)
	g.Rebuild()

	it := g.Neighbors(r2.Vec{X: 8, Y: 8}, 16)
	got := drain(&it, 0)
	if !slices.Equal(got, []int{1, 2}) {
		t.Errorf("got %v, want [1 2]", got)
	}
	if !it.Done() {
		t.Error("iterator not done after exhaustion")
	}
	if _, ok := it.Next(0); ok {
		t.Error("exhausted iterator yielded again")
	}
}

func TestNeighborIteratorReach(t *testing.T) {
	g := newTestGrid(t, cellGridStore(), 16, smallView, 0)
	g.Rebuild()

	tests := []struct {
		name   string
		pos    r2.Vec
		radius float64
		want   []int
	}{
		{"zero radius stays in own cell", r2.Vec{X: 8, Y: 8}, 0, []int{0}},
		{"reach clamped at grid edge", r2.Vec{X: 56, Y: 56}, 16, []int{4, 3}},
		{"large radius covers everything", r2.Vec{X: 8, Y: 8}, 100, []int{0, 1, 2, 4, 3}},
		{"outside grid uses clamped center", r2.Vec{X: 500, Y: 500}, 1, []int{4, 3}},
		{"negative radius is empty", r2.Vec{X: 8, Y: 8}, -1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var it NeighborIterator
			it.Init(g, tt.pos, tt.radius)
			got := drain(&it, -1)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeighborIteratorZeroValue(t *testing.T) {
	var it NeighborIterator
	if _, ok := it.Next(-1); ok {
		t.Error("zero iterator should be exhausted")
	}
	it.Init(nil, r2.Vec{}, 10)
	if _, ok := it.Next(-1); ok {
		t.Error("iterator without a grid should be exhausted")
	}
}

func TestNeighborIteratorMatchesQuery(t *testing.T) {
	g := newTestGrid(t, cellGridStore(), 16, smallView, 0)
	g.Rebuild()
	items := g.Store().Items()

	// Distance-filtering the iterator gives the same set as GetParticles.
	center := r2.Vec{X: 20, Y: 20}
	const radius = 25.0

	it := g.Neighbors(center, radius)
	var filtered []int
	for {
		i, ok := it.Next(-1)
		if !ok {
			break
		}
		if r2.Norm(r2.Sub(items[i].Position, center)) < radius {
			filtered = append(filtered, i)
		}
	}
	want := g.GetParticles(center, radius, 0)

	slices.Sort(filtered)
	slices.Sort(want)
	if !slices.Equal(filtered, want) {
		t.Errorf("iterator %v != query %v", filtered, want)
	}
}
