package parallel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/config"
	"github.com/pthm-cable/sphfluid/forces"
	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/particles"
	"github.com/pthm-cable/sphfluid/physics"
	"github.com/pthm-cable/sphfluid/sequential"
)

func testParams() physics.Params {
	return physics.NewParams(config.Default())
}

// lattice places a side x side block of particles with the given spacing and
// seeded velocities in [-speed, speed).
func lattice(side int, spacing float64, origin r2.Vec, speed float64, seed int64) *particles.State {
	rng := rand.New(rand.NewSource(seed))
	st := particles.NewState(side * side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			i := y*side + x
			pos := r2.Vec{X: origin.X + float64(x)*spacing, Y: origin.Y + float64(y)*spacing}
			vel := r2.Vec{X: (rng.Float64()*2 - 1) * speed, Y: (rng.Float64()*2 - 1) * speed}
			st.Set(i, pos, vel, 1)
		}
	}
	return st
}

func newBackend(t *testing.T, params physics.Params, field forces.Field, st *particles.State, prec gpu.Precision) *Backend {
	t.Helper()
	b, err := New(params, field, st, Options{Device: gpu.Options{Precision: prec, Workers: 4}, BlockSize: 64})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestNewRejectsBadInput(t *testing.T) {
	params := testParams()

	_, err := New(params, nil, lattice(4, 0.01, r2.Vec{X: 0.5, Y: 0.5}, 0.1, 1), Options{Device: gpu.Options{Precision: "float16"}})
	assert.ErrorIs(t, err, gpu.ErrUnsupportedPrecision)

	_, err = New(params, nil, lattice(10, 0.01, r2.Vec{X: 0.1, Y: 0.1}, 0.1, 1), Options{Device: gpu.Options{MaxTextureSize: 4}})
	assert.ErrorIs(t, err, gpu.ErrTextureTooLarge)

	bad := lattice(2, 0.01, r2.Vec{X: 0.5, Y: 0.5}, 0.1, 1)
	bad.Mass[1] = 0
	_, err = New(params, nil, bad, Options{})
	assert.ErrorIs(t, err, particles.ErrInvalidState)
}

func TestStateRoundTrip(t *testing.T) {
	initial := lattice(12, 0.012, r2.Vec{X: 0.3, Y: 0.3}, 0.1, 2)
	b := newBackend(t, testParams(), nil, initial, gpu.Float64)

	got := b.State()
	assert.Equal(t, initial.Position, got.Position)
	assert.Equal(t, initial.Velocity, got.Velocity)
	assert.Equal(t, initial.Mass, got.Mass)
}

func TestStepKeepsIdentityThroughSort(t *testing.T) {
	initial := lattice(15, 0.012, r2.Vec{X: 0.4, Y: 0.4}, 0.1, 3)
	b := newBackend(t, testParams(), nil, initial, gpu.Float64)
	b.Step(0.01)

	ids := b.IDs()
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		require.False(t, seen[id], "id %d appears twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, initial.Len())

	// Mass is constant per particle, so a scrambled readback would show up here.
	initial.Mass[7] = 3
	b2 := newBackend(t, testParams(), nil, initial, gpu.Float64)
	b2.Step(0.01)
	assert.Equal(t, 3.0, b2.State().Mass[7])
}

func TestParallelWallReflection(t *testing.T) {
	params := testParams()
	params.WallRestitution = 0.5
	params.Substeps = 1

	st := particles.NewState(1)
	st.Set(0, r2.Vec{X: -0.01, Y: 0.5}, r2.Vec{X: -1, Y: 0}, 1)
	b := newBackend(t, params, nil, st, gpu.Float32)
	b.Step(0.001)

	got := b.State()
	assert.InDelta(t, 0.5, got.Velocity[0].X, 1e-6)
	assert.InDelta(t, 0, got.Velocity[0].Y, 1e-12)
}

func TestBackendEquivalence(t *testing.T) {
	const steps = 10
	// resting: the block only expands under pressure, so no pair crosses the
	// collision distance and both backends take the same branches. The
	// float32 bound holds for this scenario only; once collisions fire,
	// rounding can flip the closing test and float32 drifts to ~1e-2.
	resting := lattice(20, 0.012, r2.Vec{X: 0.35, Y: 0.05}, 0, 4)
	// colliding: spacing below CollisionDistance with random closing
	// velocities, so every sub-step runs the collision impulse.
	colliding := lattice(20, 0.008, r2.Vec{X: 0.4, Y: 0.4}, 0.5, 7)

	tests := []struct {
		name    string
		initial *particles.State
		prec    gpu.Precision
		tol     float64
	}{
		{"resting float64", resting, gpu.Float64, 1e-7},
		{"resting float32", resting, gpu.Float32, 1e-3},
		{"colliding float64", colliding, gpu.Float64, 1e-9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams()
			require.Less(t, 0.008, params.CollisionDistance)
			field := forces.Gravity{Accel: r2.Vec{Y: -1}}

			seq := tt.initial.Clone()
			stepper := sequential.New(params, field)
			par := newBackend(t, params, field, tt.initial, tt.prec)

			for k := 0; k < steps; k++ {
				stepper.Step(seq, 0.01)
				par.Step(0.01)
			}

			got := par.State()
			var worst float64
			for i := range seq.Position {
				worst = math.Max(worst, r2.Norm(r2.Sub(seq.Position[i], got.Position[i])))
			}
			assert.Less(t, worst, tt.tol, "max position divergence")
		})
	}
}

func TestLoadResetsState(t *testing.T) {
	initial := lattice(8, 0.012, r2.Vec{X: 0.5, Y: 0.5}, 0.1, 5)
	b := newBackend(t, testParams(), forces.Gravity{Accel: r2.Vec{Y: -1}}, initial, gpu.Float64)
	b.Step(0.01)
	require.NotEqual(t, initial.Position, b.State().Position)

	require.NoError(t, b.Load(initial))
	assert.Equal(t, initial.Position, b.State().Position)

	err := b.Load(lattice(3, 0.01, r2.Vec{X: 0.5, Y: 0.5}, 0.1, 1))
	assert.ErrorIs(t, err, ErrParticleCount)
}

func TestDeviceStatsCountPasses(t *testing.T) {
	params := testParams()
	params.Substeps = 2
	b := newBackend(t, params, nil, lattice(4, 0.012, r2.Vec{X: 0.5, Y: 0.5}, 0.1, 6), gpu.Float32)
	b.Step(0.01)

	st := b.DeviceStats()
	// Per sub-step: key, histogram, count, scans, cells, scatter, 4 gathers, 6 stages.
	perSub := 5 + b.sorter.ScanPasses() + 4 + 6
	assert.Equal(t, 2*perSub, st.Passes)
}
