package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Simulation.Backend != BackendSequential {
		t.Errorf("default backend = %q", cfg.Simulation.Backend)
	}
	if cfg.Derived.CellSize != cfg.Physics.SmoothingRadius {
		t.Errorf("cell size %g should default to h %g", cfg.Derived.CellSize, cfg.Physics.SmoothingRadius)
	}
	if cfg.Derived.GridCols != 34 || cfg.Derived.NumCells != 34*34 {
		t.Errorf("grid = %d cols, %d cells", cfg.Derived.GridCols, cfg.Derived.NumCells)
	}
	if want := cfg.Simulation.DT / float64(cfg.Simulation.Substeps); cfg.Derived.SubstepDT != want {
		t.Errorf("SubstepDT = %g, want %g", cfg.Derived.SubstepDT, want)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	data := []byte("simulation:\n  backend: parallel\n  substeps: 2\ngrid:\n  cell_size: 0.05\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Simulation.Backend != BackendParallel || cfg.Simulation.Substeps != 2 {
		t.Errorf("user values not applied: %+v", cfg.Simulation)
	}
	if cfg.Simulation.Particles != 1500 {
		t.Errorf("unset fields must keep defaults, particles = %d", cfg.Simulation.Particles)
	}
	if cfg.Derived.CellSize != 0.05 || cfg.Derived.GridCols != 20 {
		t.Errorf("derived grid = %g / %d", cfg.Derived.CellSize, cfg.Derived.GridCols)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero smoothing radius", func(c *Config) { c.Physics.SmoothingRadius = 0 }},
		{"negative smoothing radius", func(c *Config) { c.Physics.SmoothingRadius = -0.1 }},
		{"zero dt", func(c *Config) { c.Simulation.DT = 0 }},
		{"no substeps", func(c *Config) { c.Simulation.Substeps = 0 }},
		{"restitution above one", func(c *Config) { c.Physics.ParticleRestitution = 1.5 }},
		{"negative wall restitution", func(c *Config) { c.Physics.WallRestitution = -0.1 }},
		{"zero eta", func(c *Config) { c.Physics.Eta = 0 }},
		{"cell smaller than h", func(c *Config) { c.Grid.CellSize = 0.01 }},
		{"unknown backend", func(c *Config) { c.Simulation.Backend = "cuda" }},
		{"zero mass", func(c *Config) { c.Scene.Mass = 0 }},
		{"no particles", func(c *Config) { c.Simulation.Particles = 0 }},
		{"unknown scene", func(c *Config) { c.Scene.Kind = "vortex" }},
		{"unknown color mode", func(c *Config) { c.Screen.ColorMode = "rainbow" }},
		{"collision beyond h", func(c *Config) { c.Physics.CollisionDistance = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := Default()
	c.Simulation.DT = -1
	c.Physics.Eta = 0
	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("expected joined error, got %T", err)
	}
	if n := len(joined.Unwrap()); n != 2 {
		t.Errorf("got %d errors, want 2", n)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	c := Default()
	c.Simulation.Particles = 321
	if err := c.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Simulation.Particles != 321 {
		t.Errorf("particles = %d, want 321", back.Simulation.Particles)
	}
}

func TestCfgBeforeInitPanics(t *testing.T) {
	saved := global
	global = nil
	defer func() { global = saved }()

	defer func() {
		if recover() == nil {
			t.Error("Cfg() before Init should panic")
		}
	}()
	Cfg()
}
