// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Backend names accepted by simulation.backend.
const (
	BackendSequential = "sequential"
	BackendParallel   = "parallel"
)

// Scene kinds accepted by scene.kind.
const (
	SceneDamBreak = "dam_break"
	SceneBlock    = "block"
	SceneRandom   = "random"
)

// Color modes accepted by screen.color_mode.
const (
	ColorDensity = "density"
	ColorSpeed   = "speed"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Grid       GridConfig       `yaml:"grid"`
	Forces     ForcesConfig     `yaml:"forces"`
	GPU        GPUConfig        `yaml:"gpu"`
	Scene      SceneConfig      `yaml:"scene"`
	Screen     ScreenConfig     `yaml:"screen"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig selects the backend and the time-stepping.
type SimulationConfig struct {
	Backend   string  `yaml:"backend"`   // "sequential" or "parallel"
	Particles int     `yaml:"particles"` // particle count N, fixed for the run
	DT        float64 `yaml:"dt"`        // outer frame timestep
	Substeps  int     `yaml:"substeps"`  // sub-steps per frame
}

// PhysicsConfig holds SPH and collision parameters.
type PhysicsConfig struct {
	SmoothingRadius     float64 `yaml:"smoothing_radius"` // h
	RestDensity         float64 `yaml:"rest_density"`
	Stiffness           float64 `yaml:"stiffness"`
	Exponent            float64 `yaml:"exponent"` // EOS power law
	ParticleRestitution float64 `yaml:"particle_restitution"`
	WallRestitution     float64 `yaml:"wall_restitution"`
	CollisionDistance   float64 `yaml:"collision_distance"`
	Eta                 float64 `yaml:"eta"` // distance epsilon
}

// GridConfig holds spatial hash parameters.
type GridConfig struct {
	CellSize float64 `yaml:"cell_size"` // 0 = smoothing radius
}

// ForcesConfig holds external force parameters.
type ForcesConfig struct {
	GravityX        float64 `yaml:"gravity_x"`
	GravityY        float64 `yaml:"gravity_y"`
	PointerRadius   float64 `yaml:"pointer_radius"`
	PointerStrength float64 `yaml:"pointer_strength"`
}

// GPUConfig holds parallel backend device parameters.
type GPUConfig struct {
	Precision      string `yaml:"precision"`        // "float32" or "float64"
	Workers        int    `yaml:"workers"`          // 0 = GOMAXPROCS
	MaxTextureSize int    `yaml:"max_texture_size"` // per axis
	BlockSize      int    `yaml:"block_size"`       // particles per sort block
}

// SceneConfig holds initial particle placement parameters.
type SceneConfig struct {
	Kind   string  `yaml:"kind"` // "dam_break", "block", "random"
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Mass   float64 `yaml:"mass"`
	Jitter float64 `yaml:"jitter"`
	Seed   int64   `yaml:"seed"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	TargetFPS      int     `yaml:"target_fps"`
	ParticleRadius float64 `yaml:"particle_radius"` // in domain units
	ColorMode      string  `yaml:"color_mode"`      // "density" or "speed"
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int `yaml:"stats_window"`          // frames per stats record
	PerfCollectorWindow int `yaml:"perf_collector_window"` // frames averaged by perf stats
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	CellSize  float64 // effective cell size (>= h)
	GridCols  int     // cells along x over the unit square
	GridRows  int     // cells along y over the unit square
	NumCells  int     // GridCols * GridRows
	SubstepDT float64 // Simulation.DT / Simulation.Substeps
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	return cfg, nil
}

// Validate reports every precondition violation in the configuration.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.Simulation.Backend {
	case BackendSequential, BackendParallel:
	default:
		bad("simulation.backend %q (want %q or %q)", c.Simulation.Backend, BackendSequential, BackendParallel)
	}
	if c.Simulation.Particles < 1 {
		bad("simulation.particles must be >= 1, got %d", c.Simulation.Particles)
	}
	if !(c.Simulation.DT > 0) {
		bad("simulation.dt must be > 0, got %g", c.Simulation.DT)
	}
	if c.Simulation.Substeps < 1 {
		bad("simulation.substeps must be >= 1, got %d", c.Simulation.Substeps)
	}

	p := c.Physics
	if !(p.SmoothingRadius > 0) {
		bad("physics.smoothing_radius must be > 0, got %g", p.SmoothingRadius)
	}
	if !(p.RestDensity > 0) {
		bad("physics.rest_density must be > 0, got %g", p.RestDensity)
	}
	if p.Stiffness < 0 {
		bad("physics.stiffness must be >= 0, got %g", p.Stiffness)
	}
	if !(p.Exponent >= 1) {
		bad("physics.exponent must be >= 1, got %g", p.Exponent)
	}
	if p.ParticleRestitution < 0 || p.ParticleRestitution > 1 {
		bad("physics.particle_restitution must be in [0,1], got %g", p.ParticleRestitution)
	}
	if p.WallRestitution < 0 || p.WallRestitution > 1 {
		bad("physics.wall_restitution must be in [0,1], got %g", p.WallRestitution)
	}
	if p.CollisionDistance < 0 || p.CollisionDistance > p.SmoothingRadius {
		bad("physics.collision_distance must be in [0, smoothing_radius], got %g", p.CollisionDistance)
	}
	if !(p.Eta > 0) {
		bad("physics.eta must be > 0, got %g", p.Eta)
	}

	if c.Grid.CellSize != 0 && c.Grid.CellSize < p.SmoothingRadius {
		bad("grid.cell_size %g is smaller than smoothing_radius %g", c.Grid.CellSize, p.SmoothingRadius)
	}

	if c.Forces.PointerRadius < 0 {
		bad("forces.pointer_radius must be >= 0, got %g", c.Forces.PointerRadius)
	}

	if c.GPU.Workers < 0 {
		bad("gpu.workers must be >= 0, got %d", c.GPU.Workers)
	}
	if c.GPU.MaxTextureSize < 1 {
		bad("gpu.max_texture_size must be >= 1, got %d", c.GPU.MaxTextureSize)
	}
	if c.GPU.BlockSize < 1 {
		bad("gpu.block_size must be >= 1, got %d", c.GPU.BlockSize)
	}

	switch c.Scene.Kind {
	case SceneDamBreak, SceneBlock, SceneRandom:
	default:
		bad("scene.kind %q (want %q, %q or %q)", c.Scene.Kind, SceneDamBreak, SceneBlock, SceneRandom)
	}
	if !(c.Scene.Mass > 0) {
		bad("scene.mass must be > 0, got %g", c.Scene.Mass)
	}
	if c.Scene.Width <= 0 || c.Scene.Width > 1 || c.Scene.Height <= 0 || c.Scene.Height > 1 {
		bad("scene size %gx%g must lie in (0,1]", c.Scene.Width, c.Scene.Height)
	}

	switch c.Screen.ColorMode {
	case ColorDensity, ColorSpeed:
	default:
		bad("screen.color_mode %q (want %q or %q)", c.Screen.ColorMode, ColorDensity, ColorSpeed)
	}

	return errors.Join(errs...)
}

// ComputeDerived calculates values derived from loaded config.
func (c *Config) ComputeDerived() {
	cellSize := c.Grid.CellSize
	if cellSize == 0 {
		cellSize = c.Physics.SmoothingRadius
	}
	c.Derived.CellSize = cellSize
	c.Derived.GridCols = int(math.Ceil(1 / cellSize))
	c.Derived.GridRows = c.Derived.GridCols
	c.Derived.NumCells = c.Derived.GridCols * c.Derived.GridRows

	if c.Simulation.Substeps > 0 {
		c.Derived.SubstepDT = c.Simulation.DT / float64(c.Simulation.Substeps)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
