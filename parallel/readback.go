package parallel

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/particles"
)

// SortedState downloads every field in current sorted order. Particle k of
// the result is whatever particle the last sort placed at rank k; this is
// enough for drawing.
func (b *Backend) SortedState() *particles.State {
	st := particles.NewState(b.n)
	b.readInto(st, func(i int) int { return i })
	return st
}

// State downloads every field and scatters it back to original particle
// identity: particle i of the result is particle i of the initial state.
func (b *Backend) State() *particles.State {
	ids := b.IDs()
	st := particles.NewState(b.n)
	b.readInto(st, func(i int) int { return ids[i] })
	return st
}

// IDs downloads the original index of every sorted rank.
func (b *Backend) IDs() []int {
	ids := make([]int, b.n)
	b.id.Download(func(r gpu.ReadView) {
		for i := range ids {
			ids[i] = int(r.Int(i, 0))
		}
	})
	return ids
}

func (b *Backend) readInto(st *particles.State, dst func(i int) int) {
	readVec := func(f *gpu.Field, out []r2.Vec) {
		f.Download(func(r gpu.ReadView) {
			for i := 0; i < b.n; i++ {
				out[dst(i)] = vec(r, i)
			}
		})
	}
	readScalar := func(f *gpu.Field, out []float64) {
		f.Download(func(r gpu.ReadView) {
			for i := 0; i < b.n; i++ {
				out[dst(i)] = r.Scalar(i)
			}
		})
	}

	readVec(b.position, st.Position)
	readVec(b.velocity, st.Velocity)
	readScalar(b.mass, st.Mass)
	readScalar(b.density, st.Density)
	readScalar(b.pressure, st.Pressure)
	readVec(b.pressureForce, st.PressureForce)
	readVec(b.velocityGuess, st.VelocityGuess)
}

// Load replaces the particle state, for example on reset. The particle count
// must match the one the backend was created with.
func (b *Backend) Load(st *particles.State) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if st.Len() != b.n {
		return errLength(st.Len(), b.n)
	}
	b.upload(st)
	return nil
}
