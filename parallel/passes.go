package parallel

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/bucketsort"
	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/grid"
)

func (b *Backend) compile() error {
	perm, cells := b.sorter.Permutation(), b.sorter.Cells()

	specs := []struct {
		dst    **gpu.Program
		name   string
		reads  []*gpu.Field
		writes []*gpu.Field
		bind   gpu.Binder
	}{
		{&b.densityPass, "density",
			[]*gpu.Field{b.position, b.mass, perm, cells}, []*gpu.Field{b.density}, b.bindDensity},
		{&b.pressurePass, "pressure",
			[]*gpu.Field{b.density}, []*gpu.Field{b.pressure}, b.bindPressure},
		{&b.pressureForcePass, "pressure_force",
			[]*gpu.Field{b.position, b.mass, b.density, b.pressure, perm, cells}, []*gpu.Field{b.pressureForce}, b.bindPressureForce},
		{&b.predictPass, "predict_velocity",
			[]*gpu.Field{b.position, b.velocity, b.mass}, []*gpu.Field{b.velocityGuess}, b.bindPredict},
		{&b.collisionPass, "collisions",
			[]*gpu.Field{b.position, b.mass, b.velocityGuess, b.pressureForce, perm, cells}, []*gpu.Field{b.velocity}, b.bindCollisions},
		{&b.integratePass, "integrate",
			[]*gpu.Field{b.position, b.velocity}, []*gpu.Field{b.position}, b.bindIntegrate},
	}
	for _, s := range specs {
		p, err := gpu.NewProgram(s.name, s.reads, s.writes, s.bind)
		if err != nil {
			return err
		}
		*s.dst = p
	}
	return nil
}

// neighbors enumerates every sorted particle in the scan set of sorted
// particle i, including i itself, through the contiguous cell ranges.
type neighbors struct {
	grid  grid.Grid
	perm  gpu.ReadView
	cells gpu.ReadView
}

func (b *Backend) neighbors(in gpu.Inputs) neighbors {
	return neighbors{
		grid:  b.grid,
		perm:  in.Of(b.sorter.Permutation()),
		cells: in.Of(b.sorter.Cells()),
	}
}

func (n neighbors) each(i int, fn func(j int)) {
	k := n.grid.Unflatten(bucketsort.CellAt(n.perm, i))
	grid.ForEachInRanges(n.grid, n.rangeOf, k, fn)
}

func (n neighbors) rangeOf(cell int) grid.Range {
	return bucketsort.RangeAt(n.cells, cell)
}

func vec(r gpu.ReadView, i int) r2.Vec {
	x, y := r.Vec2(i)
	return r2.Vec{X: x, Y: y}
}

func (b *Backend) bindDensity(in gpu.Inputs, out gpu.Outputs) func(int) {
	pos, mass, nb := in.Of(b.position), in.Of(b.mass), b.neighbors(in)
	density := out.Of(b.density)
	p := b.params
	return func(i int) {
		own := vec(pos, i)
		var rho float64
		nb.each(i, func(j int) {
			rho += mass.Scalar(j) * p.DensityWeight(r2.Norm2(r2.Sub(own, vec(pos, j))))
		})
		density.SetScalar(i, rho)
	}
}

func (b *Backend) bindPressure(in gpu.Inputs, out gpu.Outputs) func(int) {
	density, pressure := in.Of(b.density), out.Of(b.pressure)
	p := b.params
	return func(i int) {
		pressure.SetScalar(i, p.Pressure(density.Scalar(i)))
	}
}

func (b *Backend) bindPressureForce(in gpu.Inputs, out gpu.Outputs) func(int) {
	pos, mass, nb := in.Of(b.position), in.Of(b.mass), b.neighbors(in)
	density, pressure := in.Of(b.density), in.Of(b.pressure)
	force := out.Of(b.pressureForce)
	p := b.params
	return func(i int) {
		own := vec(pos, i)
		mi, pi, rhoi := mass.Scalar(i), pressure.Scalar(i), density.Scalar(i)
		var f r2.Vec
		nb.each(i, func(j int) {
			if j == i {
				return
			}
			dx := r2.Sub(own, vec(pos, j))
			d := r2.Norm(dx) + p.Eta
			grad := p.GradientMagnitude(d)
			if grad == 0 {
				return
			}
			coef := mi * mass.Scalar(j) * p.PressureCoefficient(pi, rhoi, pressure.Scalar(j), density.Scalar(j)) * grad
			f = r2.Add(f, r2.Scale(coef/d, dx))
		})
		force.SetVec2(i, f.X, f.Y)
	}
}

func (b *Backend) bindPredict(in gpu.Inputs, out gpu.Outputs) func(int) {
	pos, vel, mass := in.Of(b.position), in.Of(b.velocity), in.Of(b.mass)
	guess := out.Of(b.velocityGuess)
	field, dt := b.forces, b.dt
	return func(i int) {
		m := mass.Scalar(i)
		v := vec(vel, i)
		g := r2.Add(v, r2.Scale(dt/m, field.Force(vec(pos, i), v, m)))
		guess.SetVec2(i, g.X, g.Y)
	}
}

func (b *Backend) bindCollisions(in gpu.Inputs, out gpu.Outputs) func(int) {
	pos, mass, nb := in.Of(b.position), in.Of(b.mass), b.neighbors(in)
	guessTex, force := in.Of(b.velocityGuess), in.Of(b.pressureForce)
	vel := out.Of(b.velocity)
	p, dt := b.params, b.dt
	return func(i int) {
		own := vec(pos, i)
		guess := vec(guessTex, i)
		mi := mass.Scalar(i)
		v := r2.Add(guess, r2.Scale(dt/mi, vec(force, i)))

		var collidedMass float64
		var dv r2.Vec
		nb.each(i, func(j int) {
			if j == i {
				return
			}
			dx := r2.Sub(own, vec(pos, j))
			dvel := r2.Sub(guess, vec(guessTex, j))
			d := r2.Norm(dx) + p.Eta
			dot := r2.Dot(dx, dvel)
			if d < p.CollisionDistance && dot < 0 {
				mj := mass.Scalar(j)
				collidedMass += mj
				dv = r2.Add(dv, r2.Scale(mj*(1+p.ParticleRestitution)*(dot/d)/d, dx))
			}
		})
		v = r2.Sub(v, r2.Scale(1/(mi+collidedMass), dv))

		v.X, v.Y = p.ReflectWalls(own.X, own.Y, v.X, v.Y)
		vel.SetVec2(i, v.X, v.Y)
	}
}

func (b *Backend) bindIntegrate(in gpu.Inputs, out gpu.Outputs) func(int) {
	pos, vel := in.Of(b.position), in.Of(b.velocity)
	next := out.Of(b.position)
	dt := b.dt
	return func(i int) {
		p := r2.Add(vec(pos, i), r2.Scale(dt, vec(vel, i)))
		next.SetVec2(i, p.X, p.Y)
	}
}
