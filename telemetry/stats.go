package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/sphfluid/particles"
)

// Diagnostics holds aggregate physical quantities sampled at a frame.
type Diagnostics struct {
	Frame   int     `csv:"frame"`
	SimTime float64 `csv:"sim_time"`
	Count   int     `csv:"particles"`

	// Conservation bookkeeping
	TotalMass     float64 `csv:"total_mass"`
	MomentumX     float64 `csv:"momentum_x"`
	MomentumY     float64 `csv:"momentum_y"`
	KineticEnergy float64 `csv:"kinetic_energy"`

	// Field distributions
	DensityMean  float64 `csv:"density_mean"`
	DensityStd   float64 `csv:"density_std"`
	DensityP50   float64 `csv:"density_p50"`
	DensityMax   float64 `csv:"density_max"`
	PressureMean float64 `csv:"pressure_mean"`
	MaxSpeed     float64 `csv:"max_speed"`
	OutOfBounds  int     `csv:"out_of_bounds"`
}

// Measure computes diagnostics for a particle state.
func Measure(s *particles.State, frame int, simTime float64) Diagnostics {
	n := s.Len()
	d := Diagnostics{Frame: frame, SimTime: simTime, Count: n}
	if n == 0 {
		return d
	}

	px := make([]float64, n)
	py := make([]float64, n)
	ke := make([]float64, n)
	speed := make([]float64, n)
	for i := 0; i < n; i++ {
		m := s.Mass[i]
		v := s.Velocity[i]
		px[i] = m * v.X
		py[i] = m * v.Y
		v2 := r2.Norm2(v)
		ke[i] = 0.5 * m * v2
		speed[i] = math.Sqrt(v2)

		p := s.Position[i]
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			d.OutOfBounds++
		}
	}

	d.TotalMass = floats.Sum(s.Mass)
	d.MomentumX = floats.Sum(px)
	d.MomentumY = floats.Sum(py)
	d.KineticEnergy = floats.Sum(ke)
	d.MaxSpeed = floats.Max(speed)

	d.DensityMean, d.DensityStd = stat.PopMeanStdDev(s.Density, nil)
	sorted := make([]float64, n)
	copy(sorted, s.Density)
	sort.Float64s(sorted)
	d.DensityP50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	d.DensityMax = sorted[n-1]
	d.PressureMean = stat.Mean(s.Pressure, nil)

	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (d Diagnostics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frame", d.Frame),
		slog.Float64("sim_time", d.SimTime),
		slog.Int("particles", d.Count),
		slog.Float64("total_mass", d.TotalMass),
		slog.Float64("momentum_x", d.MomentumX),
		slog.Float64("momentum_y", d.MomentumY),
		slog.Float64("kinetic_energy", d.KineticEnergy),
		slog.Float64("density_mean", d.DensityMean),
		slog.Float64("density_std", d.DensityStd),
		slog.Float64("density_p50", d.DensityP50),
		slog.Float64("density_max", d.DensityMax),
		slog.Float64("pressure_mean", d.PressureMean),
		slog.Float64("max_speed", d.MaxSpeed),
		slog.Int("out_of_bounds", d.OutOfBounds),
	)
}

// LogStats logs the diagnostics using slog.
func (d Diagnostics) LogStats() {
	slog.Info("stats", "diagnostics", d)
}
