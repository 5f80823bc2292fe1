package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/config"
	"github.com/pthm-cable/sphfluid/particles"
	"github.com/pthm-cable/sphfluid/scene"
)

func TestCompare(t *testing.T) {
	a := particles.NewState(2)
	a.Set(0, r2.Vec{X: 0.1, Y: 0.1}, r2.Vec{}, 1)
	a.Set(1, r2.Vec{X: 0.5, Y: 0.5}, r2.Vec{X: 1}, 1)
	b := a.Clone()
	b.Position[1] = r2.Vec{X: 0.5, Y: 0.53}
	b.Velocity[0] = r2.Vec{Y: -0.2}
	b.Density[1] = 7

	d := Compare(a, b)
	assert.InDelta(t, 0.03, d.MaxPosition, 1e-12)
	assert.InDelta(t, 0.2, d.MaxVelocity, 1e-12)
	assert.InDelta(t, 7, d.MaxDensity, 1e-12)

	assert.Equal(t, Divergence{}, Compare(a, a.Clone()))
}

func TestRunFloat64StaysClose(t *testing.T) {
	cfg := config.Default()
	cfg.GPU.Precision = "float64"
	cfg.Scene.Kind = config.SceneBlock
	cfg.Scene.Width, cfg.Scene.Height = 0.2, 0.2
	cfg.Scene.Jitter = 0

	initial, err := scene.Build(cfg.Scene, 144)
	require.NoError(t, err)

	report, err := Run(cfg, initial, 5)
	require.NoError(t, err)

	require.Len(t, report.Steps, 5)
	for i, d := range report.Steps {
		assert.Equal(t, i+1, d.Step)
	}
	assert.Less(t, report.Worst.MaxPosition, 1e-6)
	assert.Equal(t, 144, report.Sort.Particles)
	assert.Positive(t, report.Device.Passes)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.DT = 0
	initial, err := scene.Build(cfg.Scene, 10)
	require.NoError(t, err)

	_, err = Run(cfg, initial, 1)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
