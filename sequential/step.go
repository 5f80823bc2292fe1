// Package sequential implements the single-threaded simulation backend. It
// advances a particles.State in place, one stage at a time.
package sequential

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/forces"
	"github.com/pthm-cable/sphfluid/grid"
	"github.com/pthm-cable/sphfluid/particles"
	"github.com/pthm-cable/sphfluid/physics"
	"github.com/pthm-cable/sphfluid/telemetry"
)

// Stepper owns the scratch index used between stages. Particle identity is
// stable: index i is the same particle before and after every step.
type Stepper struct {
	params physics.Params
	forces forces.Field
	index  *grid.HashIndex
	keys   []grid.Key
	phases telemetry.PhaseRecorder
}

// New creates a sequential stepper. A nil force field means no external force.
func New(params physics.Params, field forces.Field) *Stepper {
	if field == nil {
		field = forces.None{}
	}
	return &Stepper{
		params: params,
		forces: field,
		index:  grid.NewHashIndex(grid.New(params.CellSize)),
		phases: telemetry.NopPhases{},
	}
}

// SetPhaseRecorder installs a recorder notified at every stage boundary.
func (s *Stepper) SetPhaseRecorder(r telemetry.PhaseRecorder) {
	if r == nil {
		r = telemetry.NopPhases{}
	}
	s.phases = r
}

// Params returns the parameters the stepper was built with.
func (s *Stepper) Params() physics.Params {
	return s.params
}

// SetParams replaces the parameters between steps. The grid is sized once,
// so the cell size of the original parameters is kept and
// the smoothing radius is capped at it.
func (s *Stepper) SetParams(p physics.Params) {
	cell := s.params.CellSize
	p = p.WithSmoothingRadius(min(p.H, cell))
	p.CellSize = cell
	s.params = p
}

// Step advances st by one frame of length dt split into Params.Substeps
// equal sub-steps.
func (s *Stepper) Step(st *particles.State, dt float64) {
	sub := dt / float64(s.params.Substeps)
	for k := 0; k < s.params.Substeps; k++ {
		s.Substep(st, sub)
	}
}

// Substep runs the six stages once with timestep dt.
func (s *Stepper) Substep(st *particles.State, dt float64) {
	s.phases.StartPhase(telemetry.PhaseSpatialGrid)
	s.rebuildIndex(st)

	s.phases.StartPhase(telemetry.PhaseDensity)
	s.computeDensity(st)

	s.phases.StartPhase(telemetry.PhasePressure)
	s.computePressure(st)

	s.phases.StartPhase(telemetry.PhasePressureForce)
	s.computePressureForce(st)

	s.phases.StartPhase(telemetry.PhasePredict)
	s.predictVelocity(st, dt)

	s.phases.StartPhase(telemetry.PhaseCollisions)
	s.resolveCollisions(st, dt)

	s.phases.StartPhase(telemetry.PhaseIntegrate)
	s.integratePosition(st, dt)
}

func (s *Stepper) rebuildIndex(st *particles.State) {
	s.index.Rebuild(st.Position)
	g := s.index.Grid()
	if cap(s.keys) < st.Len() {
		s.keys = make([]grid.Key, st.Len())
	}
	s.keys = s.keys[:st.Len()]
	for i, p := range st.Position {
		s.keys[i] = g.KeyOf(p)
	}
}

// forEachNeighbor enumerates every particle in the scan set of particle i,
// including i itself.
func (s *Stepper) forEachNeighbor(i int, fn func(j int)) {
	s.index.ForEachNeighbor(s.keys[i], fn)
}

func (s *Stepper) computeDensity(st *particles.State) {
	for i := range st.Position {
		own := st.Position[i]
		var rho float64
		s.forEachNeighbor(i, func(j int) {
			rho += st.Mass[j] * s.params.DensityWeight(r2.Norm2(r2.Sub(own, st.Position[j])))
		})
		st.Density[i] = rho
	}
}

func (s *Stepper) computePressure(st *particles.State) {
	for i, rho := range st.Density {
		st.Pressure[i] = s.params.Pressure(rho)
	}
}

func (s *Stepper) computePressureForce(st *particles.State) {
	p := s.params
	for i := range st.Position {
		own := st.Position[i]
		mi, pi, rhoi := st.Mass[i], st.Pressure[i], st.Density[i]
		var f r2.Vec
		s.forEachNeighbor(i, func(j int) {
			if j == i {
				return
			}
			dx := r2.Sub(own, st.Position[j])
			d := r2.Norm(dx) + p.Eta
			grad := p.GradientMagnitude(d)
			if grad == 0 {
				return
			}
			coef := mi * st.Mass[j] * p.PressureCoefficient(pi, rhoi, st.Pressure[j], st.Density[j]) * grad
			f = r2.Add(f, r2.Scale(coef/d, dx))
		})
		st.PressureForce[i] = f
	}
}

func (s *Stepper) predictVelocity(st *particles.State, dt float64) {
	for i := range st.Velocity {
		m := st.Mass[i]
		ext := s.forces.Force(st.Position[i], st.Velocity[i], m)
		st.VelocityGuess[i] = r2.Add(st.Velocity[i], r2.Scale(dt/m, ext))
	}
}

// resolveCollisions applies the pressure force, then kinematic particle and
// wall collisions. Neighbour velocities are always read from VelocityGuess,
// so the result does not depend on iteration order.
func (s *Stepper) resolveCollisions(st *particles.State, dt float64) {
	p := s.params
	for i := range st.Velocity {
		guess := st.VelocityGuess[i]
		own := st.Position[i]
		mi := st.Mass[i]
		vel := r2.Add(guess, r2.Scale(dt/mi, st.PressureForce[i]))

		var collidedMass float64
		var dv r2.Vec
		s.forEachNeighbor(i, func(j int) {
			if j == i {
				return
			}
			dx := r2.Sub(own, st.Position[j])
			dvel := r2.Sub(guess, st.VelocityGuess[j])
			d := r2.Norm(dx) + p.Eta
			dot := r2.Dot(dx, dvel)
			if d < p.CollisionDistance && dot < 0 {
				mj := st.Mass[j]
				collidedMass += mj
				dv = r2.Add(dv, r2.Scale(mj*(1+p.ParticleRestitution)*(dot/d)/d, dx))
			}
		})
		vel = r2.Sub(vel, r2.Scale(1/(mi+collidedMass), dv))

		vel.X, vel.Y = p.ReflectWalls(own.X, own.Y, vel.X, vel.Y)
		st.Velocity[i] = vel
	}
}

func (s *Stepper) integratePosition(st *particles.State, dt float64) {
	for i := range st.Position {
		st.Position[i] = r2.Add(st.Position[i], r2.Scale(dt, st.Velocity[i]))
	}
}
