package sim

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/config"
	"github.com/pthm-cable/sphfluid/forces"
	"github.com/pthm-cable/sphfluid/gpu"
	"github.com/pthm-cable/sphfluid/particles"
	"github.com/pthm-cable/sphfluid/physics"
	"github.com/pthm-cable/sphfluid/telemetry"
)

// Options configures a Simulation.
type Options struct {
	Config    *config.Config
	Initial   *particles.State
	LogStats  bool   // log diagnostics and perf every stats window
	OutputDir string // CSV output directory; empty disables output
}

// Simulation advances a backend one fixed frame at a time and owns the
// external forces, telemetry and run controls around it.
type Simulation struct {
	cfg     *config.Config
	backend Backend
	pointer *forces.Pointer
	initial *particles.State

	frame   int
	simTime float64
	paused  bool
	step    bool // advance one frame while paused

	perf     *telemetry.PerfCollector
	output   *telemetry.OutputManager
	logStats bool
	last     telemetry.Diagnostics
}

// NewSimulation creates the backend and telemetry described by opts.
func NewSimulation(opts Options) (*Simulation, error) {
	cfg := opts.Config
	pointer := forces.NewPointer(cfg.Forces.PointerRadius, cfg.Forces.PointerStrength)
	field := forces.Sum{
		forces.Gravity{Accel: r2.Vec{X: cfg.Forces.GravityX, Y: cfg.Forces.GravityY}},
		pointer,
	}

	backend, err := New(cfg, opts.Initial, field)
	if err != nil {
		return nil, err
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		backend.Close()
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	s := &Simulation{
		cfg:      cfg,
		backend:  backend,
		pointer:  pointer,
		initial:  opts.Initial.Clone(),
		perf:     telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		output:   output,
		logStats: opts.LogStats,
	}
	backend.SetPhaseRecorder(s.perf)
	s.last = telemetry.Measure(s.initial, 0, 0)
	return s, nil
}

// Update advances one frame unless paused. A pending single step runs even
// while paused.
func (s *Simulation) Update() {
	if s.paused && !s.step {
		return
	}
	s.step = false
	s.Frame()
}

// Frame advances exactly one frame of Simulation.DT regardless of pause.
func (s *Simulation) Frame() {
	dt := s.cfg.Simulation.DT

	s.perf.StartTick()
	before := deviceStats(s.backend)
	s.backend.Step(dt)
	after := deviceStats(s.backend)
	s.perf.RecordDeviceWork(after.Passes-before.Passes, after.Invocations-before.Invocations)
	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.frame++
	s.simTime += dt
	s.flushTelemetry()
	s.perf.EndTick()
}

// deviceStats returns the compute device counters of backends that have one.
func deviceStats(b Backend) gpu.Stats {
	if d, ok := b.(interface{ DeviceStats() gpu.Stats }); ok {
		return d.DeviceStats()
	}
	return gpu.Stats{}
}

func (s *Simulation) flushTelemetry() {
	window := s.cfg.Telemetry.StatsWindow
	if window <= 0 || s.frame%window != 0 {
		return
	}

	s.last = telemetry.Measure(s.backend.View(), s.frame, s.simTime)
	perfStats := s.perf.Stats()

	if s.logStats {
		s.last.LogStats()
		perfStats.LogStats()
	}
	if err := s.output.WriteDiagnostics(s.last); err != nil {
		slog.Error("failed to write diagnostics", "error", err)
	}
	if err := s.output.WritePerf(perfStats, s.frame); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

// TogglePause flips the paused state.
func (s *Simulation) TogglePause() {
	s.paused = !s.paused
}

// Paused reports whether the simulation is paused.
func (s *Simulation) Paused() bool {
	return s.paused
}

// StepOnce requests a single frame on the next Update while paused.
func (s *Simulation) StepOnce() {
	s.step = true
}

// Reset restores the initial particles and rewinds the clock.
func (s *Simulation) Reset() error {
	if err := s.backend.Load(s.initial.Clone()); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.frame = 0
	s.simTime = 0
	s.last = telemetry.Measure(s.initial, 0, 0)
	slog.Info("simulation reset", "backend", s.backend.Name())
	return nil
}

// Pointer returns the pointer force so the caller can feed it input.
func (s *Simulation) Pointer() *forces.Pointer {
	return s.pointer
}

// Params returns the live physics parameters.
func (s *Simulation) Params() physics.Params {
	return s.backend.Params()
}

// SetParams replaces the live physics parameters.
func (s *Simulation) SetParams(p physics.Params) {
	s.backend.SetParams(p)
}

// View returns the particles for drawing.
func (s *Simulation) View() *particles.State {
	return s.backend.View()
}

// State returns the particles in original identity order.
func (s *Simulation) State() *particles.State {
	return s.backend.State()
}

// SaveSnapshot writes the particles in original identity order to dir and
// returns the file path.
func (s *Simulation) SaveSnapshot(dir string) (string, error) {
	snap := telemetry.NewSnapshot(s.backend.State(), s.backend.Name(), s.frame, s.simTime)
	path, err := telemetry.SaveSnapshot(snap, dir)
	if err != nil {
		return "", err
	}
	slog.Info("snapshot saved", "path", path, "frame", s.frame)
	return path, nil
}

// Frame number, simulated time and most recent diagnostics.
func (s *Simulation) FrameCount() int                    { return s.frame }
func (s *Simulation) SimTime() float64                   { return s.simTime }
func (s *Simulation) Diagnostics() telemetry.Diagnostics { return s.last }
func (s *Simulation) Backend() Backend                   { return s.backend }

// RecordFrame records render frame timing.
func (s *Simulation) RecordFrame() {
	s.perf.RecordFrame()
}

// PerfStats returns the rolling performance statistics.
func (s *Simulation) PerfStats() telemetry.PerfStats {
	return s.perf.Stats()
}

// Close releases the backend and flushes output.
func (s *Simulation) Close() error {
	s.backend.Close()
	return s.output.Close()
}
