// Package particles holds the canonical per-particle simulation state.
package particles

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidState is wrapped by every state validation failure.
var ErrInvalidState = errors.New("particles: invalid state")

// State is a structure-of-arrays view over N particles. Index i addresses the
// same particle in every slice. Position, Velocity and Mass are the persistent
// fields; the rest are recomputed every sub-step.
type State struct {
	Position []r2.Vec
	Velocity []r2.Vec
	Mass     []float64

	Density       []float64
	Pressure      []float64
	PressureForce []r2.Vec
	VelocityGuess []r2.Vec
}

// NewState allocates a zeroed state for n particles.
func NewState(n int) *State {
	return &State{
		Position:      make([]r2.Vec, n),
		Velocity:      make([]r2.Vec, n),
		Mass:          make([]float64, n),
		Density:       make([]float64, n),
		Pressure:      make([]float64, n),
		PressureForce: make([]r2.Vec, n),
		VelocityGuess: make([]r2.Vec, n),
	}
}

// Len returns the particle count.
func (s *State) Len() int {
	return len(s.Position)
}

// Set writes the persistent fields of particle i.
func (s *State) Set(i int, pos, vel r2.Vec, mass float64) {
	s.Position[i] = pos
	s.Velocity[i] = vel
	s.Mass[i] = mass
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := NewState(s.Len())
	copy(c.Position, s.Position)
	copy(c.Velocity, s.Velocity)
	copy(c.Mass, s.Mass)
	copy(c.Density, s.Density)
	copy(c.Pressure, s.Pressure)
	copy(c.PressureForce, s.PressureForce)
	copy(c.VelocityGuess, s.VelocityGuess)
	return c
}

// Permute returns a copy where particle k of the result is particle perm[k] of s.
func (s *State) Permute(perm []int) *State {
	c := NewState(len(perm))
	for k, src := range perm {
		c.Position[k] = s.Position[src]
		c.Velocity[k] = s.Velocity[src]
		c.Mass[k] = s.Mass[src]
		c.Density[k] = s.Density[src]
		c.Pressure[k] = s.Pressure[src]
		c.PressureForce[k] = s.PressureForce[src]
		c.VelocityGuess[k] = s.VelocityGuess[src]
	}
	return c
}

// Validate checks the preconditions stepping relies on: matching slice
// lengths, finite positions and velocities, and strictly positive masses.
func (s *State) Validate() error {
	n := s.Len()
	if n == 0 {
		return fmt.Errorf("%w: no particles", ErrInvalidState)
	}
	lengths := []int{len(s.Velocity), len(s.Mass), len(s.Density), len(s.Pressure), len(s.PressureForce), len(s.VelocityGuess)}
	for _, l := range lengths {
		if l != n {
			return fmt.Errorf("%w: field length %d does not match %d positions", ErrInvalidState, l, n)
		}
	}

	var errs []error
	for i := 0; i < n; i++ {
		if !(s.Mass[i] > 0) || math.IsInf(s.Mass[i], 0) {
			errs = append(errs, fmt.Errorf("%w: particle %d has mass %g", ErrInvalidState, i, s.Mass[i]))
		}
		if !finite(s.Position[i]) || !finite(s.Velocity[i]) {
			errs = append(errs, fmt.Errorf("%w: particle %d has non-finite position or velocity", ErrInvalidState, i))
		}
		if len(errs) >= 8 {
			break
		}
	}
	return errors.Join(errs...)
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
