// Command conformance runs the sequential and parallel backends side by side
// from the same initial particles and reports how far they drift apart.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/sphfluid/config"
	"github.com/pthm-cable/sphfluid/scene"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	steps := flag.Int("steps", 50, "Frames to advance both backends")
	particles := flag.Int("particles", 0, "Override simulation.particles (0 = use config)")
	precision := flag.String("precision", "", "Override gpu.precision (float32 or float64)")
	tolerance := flag.Float64("tolerance", 0, "Fail if the max position divergence exceeds this (0 = report only)")
	output := flag.String("output", "", "Write per-step divergence CSV to this file")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *particles > 0 {
		cfg.Simulation.Particles = *particles
	}
	if *precision != "" {
		cfg.GPU.Precision = *precision
	}

	initial, err := scene.Build(cfg.Scene, cfg.Simulation.Particles)
	if err != nil {
		slog.Error("failed to build scene", "error", err)
		os.Exit(1)
	}

	slog.Info("starting conformance run",
		"particles", initial.Len(),
		"steps", *steps,
		"precision", cfg.GPU.Precision,
		"substeps", cfg.Simulation.Substeps,
	)

	report, err := Run(cfg, initial, *steps)
	if err != nil {
		slog.Error("conformance run failed", "error", err)
		os.Exit(1)
	}

	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			slog.Error("failed to create output", "error", err)
			os.Exit(1)
		}
		if err := gocsv.MarshalFile(&report.Steps, f); err != nil {
			slog.Error("failed to write output", "error", err)
		}
		f.Close()
	}

	slog.Info("divergence",
		"max_position", report.Worst.MaxPosition,
		"max_velocity", report.Worst.MaxVelocity,
		"max_density", report.Worst.MaxDensity,
	)
	slog.Info("bucket sort",
		"cells", report.Sort.Cells,
		"occupied", report.Sort.OccupiedCells,
		"max_per_cell", report.Sort.MaxPerCell,
		"blocks", report.Sort.Blocks,
		"scan_passes", report.Sort.ScanPasses,
		"passes", report.Device.Passes,
		"invocations", report.Device.Invocations,
	)

	if *tolerance > 0 && report.Worst.MaxPosition > *tolerance {
		slog.Error("divergence exceeds tolerance", "tolerance", *tolerance)
		os.Exit(1)
	}
}
