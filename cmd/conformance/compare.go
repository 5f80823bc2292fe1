package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/bucketsort"
	"github.com/pthm-cable/sphfluid/config"
	"github.com/pthm-cable/sphfluid/forces"
	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/parallel"
	"github.com/pthm-cable/sphfluid/particles"
	"github.com/pthm-cable/sphfluid/physics"
	"github.com/pthm-cable/sphfluid/sequential"
)

// Divergence is the largest per-particle difference between the two
// backends after one frame.
type Divergence struct {
	Step        int     `csv:"step"`
	MaxPosition float64 `csv:"max_position"`
	MaxVelocity float64 `csv:"max_velocity"`
	MaxDensity  float64 `csv:"max_density"`
}

// Report summarises a conformance run.
type Report struct {
	Steps  []Divergence
	Worst  Divergence // field-wise maxima over all steps
	Sort   bucketsort.Stats
	Device gpu.Stats
}

// Compare measures the divergence between two states of equal length and
// identity order.
func Compare(a, b *particles.State) Divergence {
	n := a.Len()
	if n == 0 {
		return Divergence{}
	}
	pos := make([]float64, n)
	vel := make([]float64, n)
	rho := make([]float64, n)
	for i := 0; i < n; i++ {
		pos[i] = r2.Norm(r2.Sub(a.Position[i], b.Position[i]))
		vel[i] = r2.Norm(r2.Sub(a.Velocity[i], b.Velocity[i]))
		rho[i] = math.Abs(a.Density[i] - b.Density[i])
	}
	return Divergence{
		MaxPosition: floats.Max(pos),
		MaxVelocity: floats.Max(vel),
		MaxDensity:  floats.Max(rho),
	}
}

// Run advances the sequential and parallel backends from the same initial
// state for steps frames under gravity and compares them after every frame.
func Run(cfg *config.Config, initial *particles.State, steps int) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if err := initial.Validate(); err != nil {
		return Report{}, err
	}
	cfg.ComputeDerived()

	params := physics.NewParams(cfg)
	field := forces.Gravity{Accel: r2.Vec{X: cfg.Forces.GravityX, Y: cfg.Forces.GravityY}}

	seq := sequential.New(params, field)
	seqState := initial.Clone()

	par, err := parallel.New(params, field, initial, parallel.Options{
		Device: gpu.Options{
			Precision:      gpu.Precision(cfg.GPU.Precision),
			Workers:        cfg.GPU.Workers,
			MaxTextureSize: cfg.GPU.MaxTextureSize,
		},
		BlockSize: cfg.GPU.BlockSize,
	})
	if err != nil {
		return Report{}, fmt.Errorf("parallel backend: %w", err)
	}
	defer par.Close()

	var report Report
	dt := cfg.Simulation.DT
	for k := 1; k <= steps; k++ {
		seq.Step(seqState, dt)
		par.Step(dt)

		d := Compare(seqState, par.State())
		d.Step = k
		report.Steps = append(report.Steps, d)

		report.Worst.Step = k
		report.Worst.MaxPosition = max(report.Worst.MaxPosition, d.MaxPosition)
		report.Worst.MaxVelocity = max(report.Worst.MaxVelocity, d.MaxVelocity)
		report.Worst.MaxDensity = max(report.Worst.MaxDensity, d.MaxDensity)
	}
	report.Sort = par.SortStats()
	report.Device = par.DeviceStats()
	return report, nil
}
