// Package scene places the initial particles of a run.
package scene

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/config"
	"github.com/pthm-cable/sphfluid/particles"
)

// Build creates n particles as described by cfg. The same config and seed
// always produce the same state.
func Build(cfg config.SceneConfig, n int) (*particles.State, error) {
	if n < 1 {
		return nil, fmt.Errorf("scene: need at least one particle, got %d", n)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	switch cfg.Kind {
	case config.SceneDamBreak:
		// Column against the left wall, resting on the floor.
		return Lattice(n, r2.Box{Min: r2.Vec{}, Max: r2.Vec{X: cfg.Width, Y: cfg.Height}}, cfg.Mass, cfg.Jitter, rng), nil
	case config.SceneBlock:
		lo := r2.Vec{X: (1 - cfg.Width) / 2, Y: (1 - cfg.Height) / 2}
		box := r2.Box{Min: lo, Max: r2.Add(lo, r2.Vec{X: cfg.Width, Y: cfg.Height})}
		return Lattice(n, box, cfg.Mass, cfg.Jitter, rng), nil
	case config.SceneRandom:
		return Random(n, r2.Box{Max: r2.Vec{X: cfg.Width, Y: cfg.Height}}, cfg.Mass, rng), nil
	default:
		return nil, fmt.Errorf("scene: unknown kind %q", cfg.Kind)
	}
}

// Lattice fills box with n particles on a square lattice, row by row from
// the bottom, offset by up to jitter lattice spacings. Particles start at rest.
func Lattice(n int, box r2.Box, mass, jitter float64, rng *rand.Rand) *particles.State {
	size := r2.Sub(box.Max, box.Min)
	spacing := math.Sqrt(size.X * size.Y / float64(n))
	cols := max(1, int(math.Floor(size.X/spacing)))
	// Re-fit the spacing so the last row stays inside the box.
	rows := (n + cols - 1) / cols
	spacing = math.Min(size.X/float64(cols), size.Y/float64(rows))

	st := particles.NewState(n)
	for i := 0; i < n; i++ {
		cx, cy := float64(i%cols), float64(i/cols)
		pos := r2.Vec{
			X: box.Min.X + (cx+0.5)*spacing + (rng.Float64()-0.5)*jitter*spacing,
			Y: box.Min.Y + (cy+0.5)*spacing + (rng.Float64()-0.5)*jitter*spacing,
		}
		st.Set(i, pos, r2.Vec{}, mass)
	}
	return st
}

// Random scatters n particles uniformly in box, at rest.
func Random(n int, box r2.Box, mass float64, rng *rand.Rand) *particles.State {
	size := r2.Sub(box.Max, box.Min)
	st := particles.NewState(n)
	for i := 0; i < n; i++ {
		pos := r2.Vec{
			X: box.Min.X + rng.Float64()*size.X,
			Y: box.Min.Y + rng.Float64()*size.Y,
		}
		st.Set(i, pos, r2.Vec{}, mass)
	}
	return st
}
