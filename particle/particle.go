// Package particle holds the canonical particle records for the simulation.
package particle

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrIndexOutOfRange is returned when a slot index does not exist in the store.
var ErrIndexOutOfRange = errors.New("particle: index out of range")

// Particle is a point mass with a disc radius for occupancy queries.
type Particle struct {
	Position     r2.Vec
	Velocity     r2.Vec
	Acceleration r2.Vec // zeroed after every integration

	Size float64 // radius-like extent
	Mass float64 // 0 = removed, <0 = pinned

	Color [4]float64 // RGBA in [0,1]
}

// Active reports whether the particle takes part in the physics phases.
func (p *Particle) Active() bool { return p.Mass > 0 }

// Live reports whether the particle occupies its slot (active or pinned).
func (p *Particle) Live() bool { return p.Mass != 0 }

// Pinned reports whether the particle is fixed in place.
func (p *Particle) Pinned() bool { return p.Mass < 0 }

// Store owns every particle. Indices are stable for the lifetime of a
// particle; removed slots are recycled by later adds.
type Store struct {
	items []Particle
	free  []int // freed slots, kept sorted descending so the lowest pops first
}

// NewStore creates a store with room for capacity particles.
func NewStore(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{items: make([]Particle, 0, capacity)}
}

// Add inserts p and returns its slot index.
func (s *Store) Add(p Particle) int {
	if n := len(s.free); n > 0 {
		i := s.free[n-1]
		s.free = s.free[:n-1]
		s.items[i] = p
		if p.Mass == 0 {
			s.release(i)
		}
		return i
	}
	s.items = append(s.items, p)
	i := len(s.items) - 1
	if p.Mass == 0 {
		s.release(i)
	}
	return i
}

// Set overwrites slot i.
func (s *Store) Set(i int, p Particle) error {
	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("set %d: %w", i, ErrIndexOutOfRange)
	}
	wasLive := s.items[i].Mass != 0
	s.items[i] = p
	switch {
	case wasLive && p.Mass == 0:
		s.release(i)
	case !wasLive && p.Mass != 0:
		s.claim(i)
	}
	return nil
}

// Remove logically deletes slot i by zeroing its mass.
func (s *Store) Remove(i int) error {
	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("remove %d: %w", i, ErrIndexOutOfRange)
	}
	if s.items[i].Mass == 0 {
		return nil
	}
	s.items[i].Mass = 0
	s.items[i].Velocity = r2.Vec{}
	s.items[i].Acceleration = r2.Vec{}
	s.release(i)
	return nil
}

// At returns a pointer to slot i. The pointer is valid until the next Add
// that grows the store.
func (s *Store) At(i int) *Particle {
	return &s.items[i]
}

// Get returns a copy of slot i.
func (s *Store) Get(i int) (Particle, error) {
	if i < 0 || i >= len(s.items) {
		return Particle{}, fmt.Errorf("get %d: %w", i, ErrIndexOutOfRange)
	}
	return s.items[i], nil
}

// Items exposes the backing slice for tight loops. Callers must not append.
func (s *Store) Items() []Particle { return s.items }

// Len returns the number of slots, including removed ones.
func (s *Store) Len() int { return len(s.items) }

// Active returns the number of particles with positive mass.
func (s *Store) Active() int {
	n := 0
	for i := range s.items {
		if s.items[i].Mass > 0 {
			n++
		}
	}
	return n
}

// Live returns the number of occupied slots (active and pinned).
func (s *Store) Live() int { return len(s.items) - len(s.free) }

// Reset drops every particle but keeps the allocation.
func (s *Store) Reset() {
	s.items = s.items[:0]
	s.free = s.free[:0]
}

// Positions appends the position of every live particle to dst.
func (s *Store) Positions(dst []r2.Vec) []r2.Vec {
	for i := range s.items {
		if s.items[i].Mass != 0 {
			dst = append(dst, s.items[i].Position)
		}
	}
	return dst
}

// release records slot i as reusable.
func (s *Store) release(i int) {
	// Insert keeping descending order.
	pos := len(s.free)
	for pos > 0 && s.free[pos-1] < i {
		pos--
	}
	s.free = append(s.free, 0)
	copy(s.free[pos+1:], s.free[pos:])
	s.free[pos] = i
}

// claim removes slot i from the free list.
func (s *Store) claim(i int) {
	for k, f := range s.free {
		if f == i {
			s.free = append(s.free[:k], s.free[k+1:]...)
			return
		}
	}
}
