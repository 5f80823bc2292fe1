// Package forces provides the external force collaborators consumed by the
// velocity prediction stage. The core treats every Field as an opaque
// additive term.
package forces

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// Field returns the external force acting on a particle. Implementations must
// be safe to call from several goroutines while no one mutates them.
type Field interface {
	Force(pos, vel r2.Vec, mass float64) r2.Vec
}

// None is the empty force field.
type None struct{}

// Force implements Field.
func (None) Force(r2.Vec, r2.Vec, float64) r2.Vec { return r2.Vec{} }

// Gravity applies a uniform acceleration.
type Gravity struct {
	Accel r2.Vec
}

// Force implements Field.
func (g Gravity) Force(_, _ r2.Vec, mass float64) r2.Vec {
	return r2.Scale(mass, g.Accel)
}

// Sum adds the contributions of several fields.
type Sum []Field

// Force implements Field.
func (s Sum) Force(pos, vel r2.Vec, mass float64) r2.Vec {
	var f r2.Vec
	for _, field := range s {
		f = r2.Add(f, field.Force(pos, vel, mass))
	}
	return f
}

// Pointer drags particles near the pointer towards the pointer's velocity.
// The frame driver updates it between steps; Force only reads.
type Pointer struct {
	Radius   float64
	Strength float64

	mu     sync.RWMutex
	pos    r2.Vec
	vel    r2.Vec
	active bool
}

// NewPointer creates an inactive pointer force.
func NewPointer(radius, strength float64) *Pointer {
	return &Pointer{Radius: radius, Strength: strength}
}

// Update records the pointer state for the next step. dt is the wall-clock
// time since the previous update and is used to derive pointer velocity.
func (p *Pointer) Update(pos r2.Vec, active bool, dt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active && active && dt > 0 {
		p.vel = r2.Scale(1/dt, r2.Sub(pos, p.pos))
	} else {
		p.vel = r2.Vec{}
	}
	p.pos = pos
	p.active = active
}

// Active reports whether the pointer currently applies force.
func (p *Pointer) Active() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Force implements Field: strength * mass * (pointerVel - vel) with a linear
// falloff to zero at Radius.
func (p *Pointer) Force(pos, vel r2.Vec, mass float64) r2.Vec {
	p.mu.RLock()
	active, ppos, pvel := p.active, p.pos, p.vel
	p.mu.RUnlock()

	if !active || p.Radius <= 0 {
		return r2.Vec{}
	}
	d := r2.Norm(r2.Sub(pos, ppos))
	if d >= p.Radius {
		return r2.Vec{}
	}
	falloff := 1 - d/p.Radius
	return r2.Scale(p.Strength*mass*falloff, r2.Sub(pvel, vel))
}
