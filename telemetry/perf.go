package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation step. Both backends report the same stages.
const (
	PhaseSpatialGrid   = "spatial_grid"
	PhaseDensity       = "density"
	PhasePressure      = "pressure"
	PhasePressureForce = "pressure_force"
	PhasePredict       = "predict_velocity"
	PhaseCollisions    = "collisions"
	PhaseIntegrate     = "integrate"
	PhaseTelemetry     = "telemetry"
)

// phaseOrder is the reporting order for logs and CSV.
var phaseOrder = []string{
	PhaseSpatialGrid, PhaseDensity, PhasePressure, PhasePressureForce,
	PhasePredict, PhaseCollisions, PhaseIntegrate, PhaseTelemetry,
}

// PhaseOrder returns the phase names in reporting order.
func PhaseOrder() []string {
	return append([]string(nil), phaseOrder...)
}

// PhaseRecorder receives stage boundaries from a backend.
type PhaseRecorder interface {
	StartPhase(phase string)
}

// NopPhases discards phase boundaries.
type NopPhases struct{}

// StartPhase implements PhaseRecorder.
func (NopPhases) StartPhase(string) {}

// PerfSample holds timing and work counts for a single frame.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration

	// Substeps counts spatial_grid phases, which open every sub-step.
	Substeps int
	// Device work issued by the parallel backend; zero on the sequential one.
	Passes      int
	Invocations int
}

// PerfCollector tracks performance metrics over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	current       PerfSample
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string

	// Frame timing (for graphics mode)
	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of ticks to average over (e.g., 60 for 1 second at 60fps).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.current = PerfSample{}
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	// End previous phase if any
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
	if phase == PhaseSpatialGrid {
		p.current.Substeps++
	}
}

// RecordDeviceWork adds compute passes and invocations issued during the
// current tick.
func (p *PerfCollector) RecordDeviceWork(passes, invocations int) {
	p.current.Passes += passes
	p.current.Invocations += invocations
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	// End final phase
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	sample := p.current
	sample.TickDuration = now.Sub(p.tickStart)
	sample.Phases = p.currentPhases

	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// RecordFrame records frame timing for graphics mode.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// Tick timing
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total tick time
	PhasePct map[string]float64

	// Throughput
	TicksPerSecond float64

	// Work per tick, averaged over the window
	AvgSubsteps        float64
	AvgSubstepDuration time.Duration
	AvgPasses          float64
	AvgInvocations     float64
	InvocationsPerSec  float64

	// Frame timing (graphics mode)
	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	// Frame timing is always available (independent of tick samples)
	var fps float64
	if p.frameDuration > 0 {
		fps = float64(time.Second) / float64(p.frameDuration)
	}

	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg:      make(map[string]time.Duration),
			PhasePct:      make(map[string]float64),
			FrameDuration: p.frameDuration,
			FPS:           fps,
		}
	}

	var totalTick time.Duration
	var minTick, maxTick time.Duration
	var substeps, passes, invocations int
	phaseSum := make(map[string]time.Duration)

	// Iterate over valid samples
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		totalTick += s.TickDuration

		if i == 0 || s.TickDuration < minTick {
			minTick = s.TickDuration
		}
		if s.TickDuration > maxTick {
			maxTick = s.TickDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
		substeps += s.Substeps
		passes += s.Passes
		invocations += s.Invocations
	}

	avgTick := totalTick / time.Duration(p.sampleCount)

	// Calculate phase averages and percentages
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avgTick > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avgTick) * 100
		}
	}

	// Calculate throughput
	var ticksPerSec float64
	if avgTick > 0 {
		ticksPerSec = float64(time.Second) / float64(avgTick)
	}

	n := float64(p.sampleCount)
	stats := PerfStats{
		AvgTickDuration: avgTick,
		MinTickDuration: minTick,
		MaxTickDuration: maxTick,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		TicksPerSecond:  ticksPerSec,
		AvgSubsteps:     float64(substeps) / n,
		AvgPasses:       float64(passes) / n,
		AvgInvocations:  float64(invocations) / n,
		FrameDuration:   p.frameDuration,
		FPS:             fps,
	}
	// Sub-step time excludes the per-frame telemetry phase.
	if substeps > 0 {
		stepTime := totalTick - phaseSum[PhaseTelemetry]
		stats.AvgSubstepDuration = stepTime / time.Duration(substeps)
	}
	if totalTick > 0 {
		stats.InvocationsPerSec = float64(invocations) / totalTick.Seconds()
	}
	return stats
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
		"substeps", s.AvgSubsteps,
		"avg_substep_us", s.AvgSubstepDuration.Microseconds(),
	}

	if s.AvgPasses > 0 {
		attrs = append(attrs, "passes", s.AvgPasses, "invocations_per_sec", int(s.InvocationsPerSec))
	}

	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}

	// Add phase breakdowns
	for _, phase := range phaseOrder {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
		slog.Float64("substeps", s.AvgSubsteps),
		slog.Int64("avg_substep_us", s.AvgSubstepDuration.Microseconds()),
		slog.Float64("passes", s.AvgPasses),
		slog.Float64("invocations", s.AvgInvocations),
	}

	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}

	for phase, pct := range s.PhasePct {
		attrs = append(attrs, slog.Float64(phase+"_pct", pct))
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd         int     `csv:"window_end"`
	AvgTickUS         int64   `csv:"avg_tick_us"`
	MinTickUS         int64   `csv:"min_tick_us"`
	MaxTickUS         int64   `csv:"max_tick_us"`
	TicksPerSec       float64 `csv:"ticks_per_sec"`
	FPS               float64 `csv:"fps"`
	Substeps          float64 `csv:"substeps"`
	AvgSubstepUS      int64   `csv:"avg_substep_us"`
	Passes            float64 `csv:"passes"`
	Invocations       float64 `csv:"invocations"`
	InvocationsPerSec float64 `csv:"invocations_per_sec"`
	SpatialGridPct    float64 `csv:"spatial_grid_pct"`
	DensityPct        float64 `csv:"density_pct"`
	PressurePct       float64 `csv:"pressure_pct"`
	PressureForcePct  float64 `csv:"pressure_force_pct"`
	PredictPct        float64 `csv:"predict_velocity_pct"`
	CollisionsPct     float64 `csv:"collisions_pct"`
	IntegratePct      float64 `csv:"integrate_pct"`
	TelemetryPct      float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:         windowEnd,
		AvgTickUS:         s.AvgTickDuration.Microseconds(),
		MinTickUS:         s.MinTickDuration.Microseconds(),
		MaxTickUS:         s.MaxTickDuration.Microseconds(),
		TicksPerSec:       s.TicksPerSecond,
		FPS:               s.FPS,
		Substeps:          s.AvgSubsteps,
		AvgSubstepUS:      s.AvgSubstepDuration.Microseconds(),
		Passes:            s.AvgPasses,
		Invocations:       s.AvgInvocations,
		InvocationsPerSec: s.InvocationsPerSec,
		SpatialGridPct:    s.PhasePct[PhaseSpatialGrid],
		DensityPct:        s.PhasePct[PhaseDensity],
		PressurePct:       s.PhasePct[PhasePressure],
		PressureForcePct:  s.PhasePct[PhasePressureForce],
		PredictPct:        s.PhasePct[PhasePredict],
		CollisionsPct:     s.PhasePct[PhaseCollisions],
		IntegratePct:      s.PhasePct[PhaseIntegrate],
		TelemetryPct:      s.PhasePct[PhaseTelemetry],
	}
}
