// Package physics holds the SPH kernels, the equation of state and the
// parameter set shared by both backends.
package physics

import (
	"math"

	"github.com/pthm-cable/sphfluid/config"
)

// Params are the read-only simulation parameters a step consumes.
type Params struct {
	H                   float64 // smoothing radius
	RestDensity         float64
	Stiffness           float64
	Exponent            float64
	ParticleRestitution float64
	WallRestitution     float64
	CollisionDistance   float64
	Eta                 float64
	CellSize            float64
	Substeps            int

	// Kernel normalisations, precomputed from H.
	Sigma     float64 // poly6: 4 / (pi h^2)
	SpikyGrad float64 // spiky derivative: 30 / (pi h^3)
	hSquared  float64
	invH      float64
}

// NewParams builds Params from a validated configuration.
func NewParams(cfg *config.Config) Params {
	p := Params{
		H:                   cfg.Physics.SmoothingRadius,
		RestDensity:         cfg.Physics.RestDensity,
		Stiffness:           cfg.Physics.Stiffness,
		Exponent:            cfg.Physics.Exponent,
		ParticleRestitution: cfg.Physics.ParticleRestitution,
		WallRestitution:     cfg.Physics.WallRestitution,
		CollisionDistance:   cfg.Physics.CollisionDistance,
		Eta:                 cfg.Physics.Eta,
		CellSize:            cfg.Derived.CellSize,
		Substeps:            cfg.Simulation.Substeps,
	}
	if p.CellSize == 0 {
		p.CellSize = p.H
	}
	return p.WithSmoothingRadius(p.H)
}

// WithSmoothingRadius returns a copy with H and the kernel constants updated.
// The collision distance shrinks with H so it never exceeds the kernel support.
func (p Params) WithSmoothingRadius(h float64) Params {
	p.H = h
	p.hSquared = h * h
	p.invH = 1 / h
	p.Sigma = 4 / (math.Pi * h * h)
	p.SpikyGrad = 30 / (math.Pi * h * h * h)
	if p.CellSize < h {
		p.CellSize = h
	}
	if p.CollisionDistance > h {
		p.CollisionDistance = h
	}
	return p
}
