// Package parallel implements the data-parallel simulation backend. Particle
// fields live in double-buffered textures on a gpu.Device and every stage of
// a sub-step is one pass in which each sorted particle is processed
// independently. Particles only see each other through neighbour texels found
// via the cell table the bucket sort rebuilds at the start of every sub-step.
package parallel

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/sphfluid/bucketsort"
	"github.com/pthm-cable/sphfluid/forces"
	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/grid"
	"github.com/pthm-cable/sphfluid/particles"
	"github.com/pthm-cable/sphfluid/physics"
	"github.com/pthm-cable/sphfluid/telemetry"
)

// ErrParticleCount is returned when a loaded state does not match the
// particle count the textures were sized for.
var ErrParticleCount = errors.New("parallel: particle count mismatch")

func errLength(got, want int) error {
	return fmt.Errorf("%w: got %d, want %d", ErrParticleCount, got, want)
}

// Options configures the device a backend creates.
type Options struct {
	Device    gpu.Options
	BlockSize int
}

// Backend owns the device, the field textures and the compiled passes.
type Backend struct {
	params physics.Params
	forces forces.Field
	grid   grid.Grid
	n      int

	dev    *gpu.Device
	sorter *bucketsort.Sorter
	phases telemetry.PhaseRecorder

	position      *gpu.Field
	velocity      *gpu.Field
	mass          *gpu.Field
	id            *gpu.Field // original particle index, gathered with the sort
	density       *gpu.Field
	pressure      *gpu.Field
	pressureForce *gpu.Field
	velocityGuess *gpu.Field

	densityPass       *gpu.Program
	pressurePass      *gpu.Program
	pressureForcePass *gpu.Program
	predictPass       *gpu.Program
	collisionPass     *gpu.Program
	integratePass     *gpu.Program

	dt float64 // uniform of the current sub-step
}

// New creates a backend and uploads initial. Initialization failures such as
// an unsupported precision or a particle count that does not fit the maximum
// texture size are returned; the backend never degrades silently.
func New(params physics.Params, field forces.Field, initial *particles.State, opts Options) (*Backend, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if field == nil {
		field = forces.None{}
	}

	dev, err := gpu.NewDevice(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}
	n := initial.Len()
	layout, err := dev.LayoutFor(n)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("particle layout: %w", err)
	}

	b := &Backend{
		params: params,
		forces: field,
		grid:   grid.New(params.CellSize),
		n:      n,
		dev:    dev,
		phases: telemetry.NopPhases{},
	}
	b.position = dev.NewField("position", layout, gpu.FormatFloat)
	b.velocity = dev.NewField("velocity", layout, gpu.FormatFloat)
	b.mass = dev.NewField("mass", layout, gpu.FormatFloat)
	b.id = dev.NewField("id", layout, gpu.FormatInt)
	b.density = dev.NewField("density", layout, gpu.FormatFloat)
	b.pressure = dev.NewField("pressure", layout, gpu.FormatFloat)
	b.pressureForce = dev.NewField("pressure_force", layout, gpu.FormatFloat)
	b.velocityGuess = dev.NewField("velocity_guess", layout, gpu.FormatFloat)

	b.sorter, err = bucketsort.New(dev, b.grid, n, opts.BlockSize, b.position, b.velocity, b.mass, b.id)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("creating sorter: %w", err)
	}
	if err := b.compile(); err != nil {
		dev.Close()
		return nil, err
	}

	b.upload(initial)

	slog.Info("parallel backend ready",
		"particles", n,
		"layout", fmt.Sprintf("%dx%d", layout.Width, layout.Height),
		"cells", b.grid.NumCells(),
		"precision", dev.Options().Precision,
		"workers", dev.Options().Workers,
	)
	return b, nil
}

func (b *Backend) upload(st *particles.State) {
	b.position.Upload(func(w gpu.WriteView) {
		for i, p := range st.Position {
			w.SetVec2(i, p.X, p.Y)
		}
	})
	b.velocity.Upload(func(w gpu.WriteView) {
		for i, v := range st.Velocity {
			w.SetVec2(i, v.X, v.Y)
		}
	})
	b.mass.Upload(func(w gpu.WriteView) {
		for i, m := range st.Mass {
			w.SetScalar(i, m)
		}
	})
	b.id.Upload(func(w gpu.WriteView) {
		for i := 0; i < st.Len(); i++ {
			w.SetInt(i, 0, int32(i))
		}
	})
}

// SetPhaseRecorder installs a recorder notified at every pass group.
func (b *Backend) SetPhaseRecorder(r telemetry.PhaseRecorder) {
	if r == nil {
		r = telemetry.NopPhases{}
	}
	b.phases = r
}

// Params returns the parameters the backend was built with.
func (b *Backend) Params() physics.Params {
	return b.params
}

// SetParams replaces the parameters between steps. Passes pick them up at
// their next bind. The cell size of the original parameters is kept because
// the sort textures are sized for it; the smoothing radius is capped at it.
func (b *Backend) SetParams(p physics.Params) {
	cell := b.params.CellSize
	p = p.WithSmoothingRadius(min(p.H, cell))
	p.CellSize = cell
	b.params = p
}

// Len returns the particle count.
func (b *Backend) Len() int {
	return b.n
}

// Step advances the simulation by dt split into Params.Substeps sub-steps.
func (b *Backend) Step(dt float64) {
	sub := dt / float64(b.params.Substeps)
	for k := 0; k < b.params.Substeps; k++ {
		b.Substep(sub)
	}
}

// Substep sorts, then runs the six stage passes in order.
func (b *Backend) Substep(dt float64) {
	b.dt = dt

	b.phases.StartPhase(telemetry.PhaseSpatialGrid)
	b.sorter.Sort()

	b.phases.StartPhase(telemetry.PhaseDensity)
	b.dev.Run(b.densityPass, b.n)

	b.phases.StartPhase(telemetry.PhasePressure)
	b.dev.Run(b.pressurePass, b.n)

	b.phases.StartPhase(telemetry.PhasePressureForce)
	b.dev.Run(b.pressureForcePass, b.n)

	b.phases.StartPhase(telemetry.PhasePredict)
	b.dev.Run(b.predictPass, b.n)

	b.phases.StartPhase(telemetry.PhaseCollisions)
	b.dev.Run(b.collisionPass, b.n)

	b.phases.StartPhase(telemetry.PhaseIntegrate)
	b.dev.Run(b.integratePass, b.n)
}

// SortStats summarises the cell table of the last sort.
func (b *Backend) SortStats() bucketsort.Stats {
	return b.sorter.ReadStats()
}

// DeviceStats returns the pass counters of the device.
func (b *Backend) DeviceStats() gpu.Stats {
	return b.dev.Stats()
}

// Close releases the device.
func (b *Backend) Close() {
	b.dev.Close()
}
