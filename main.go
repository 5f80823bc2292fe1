package main

import (
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/sphfluid/config"
	"github.com/pthm-cable/sphfluid/renderer"
	"github.com/pthm-cable/sphfluid/scene"
	"github.com/pthm-cable/sphfluid/sim"
	"github.com/pthm-cable/sphfluid/ui"
)

const panelWidth = 300

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	maxFrames := flag.Int("max-frames", 0, "Stop after N frames (0 = unlimited)")
	backend := flag.String("backend", "", "Override simulation.backend (sequential or parallel)")
	numParticles := flag.Int("particles", 0, "Override simulation.particles (0 = use config)")
	seed := flag.Int64("seed", 0, "Override scene.seed (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for debug snapshot dumps (K saves in graphical mode, headless saves on exit)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *backend != "" {
		cfg.Simulation.Backend = *backend
	}
	if *numParticles > 0 {
		cfg.Simulation.Particles = *numParticles
	}
	if *seed != 0 {
		cfg.Scene.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid overrides", "error", err)
		os.Exit(1)
	}

	initial, err := scene.Build(cfg.Scene, cfg.Simulation.Particles)
	if err != nil {
		slog.Error("failed to build scene", "error", err)
		os.Exit(1)
	}

	opts := sim.Options{
		Config:    cfg,
		Initial:   initial,
		LogStats:  *logStats,
		OutputDir: *outputDir,
	}

	if *headless {
		runHeadless(opts, *maxFrames, *snapshotDir)
		return
	}
	runGraphical(opts, *maxFrames, *snapshotDir)
}

func runHeadless(opts sim.Options, maxFrames int, snapshotDir string) {
	s, err := sim.NewSimulation(opts)
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}
	defer closeSimulation(s)

	slog.Info("starting headless simulation",
		"backend", opts.Config.Simulation.Backend,
		"particles", opts.Config.Simulation.Particles,
		"scene", opts.Config.Scene.Kind,
		"max_frames", maxFrames,
	)

	for {
		s.Frame()

		if maxFrames > 0 && s.FrameCount() >= maxFrames {
			slog.Info("max frames reached", "frame", s.FrameCount(), "sim_time", s.SimTime())
			if snapshotDir != "" {
				saveSnapshot(s, snapshotDir)
			}
			return
		}
	}
}

func runGraphical(opts sim.Options, maxFrames int, snapshotDir string) {
	cfg := opts.Config
	width, height := int32(cfg.Screen.Width), int32(cfg.Screen.Height)

	rl.InitWindow(width, height, "SPH Fluid")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	s, err := sim.NewSimulation(opts)
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		return
	}
	defer closeSimulation(s)

	view := renderer.FitViewport(width-panelWidth, height, 20)
	fluid := renderer.NewParticleRenderer(view, cfg.Screen.ParticleRadius, cfg.Screen.ColorMode)
	fluid.Init()
	defer fluid.Unload()

	panelX := int32(view.X+view.Size) + 20
	hud := ui.NewHUD()
	controls := ui.NewControlsPanel(panelX, 10, panelWidth-30, s.Params())
	diagnostics := ui.NewDiagnosticsPanel(panelX, 0, panelWidth-30)
	perf := ui.NewPerfPanel(panelX, 0)

	showPerf := false
	background := rl.Color{R: 15, G: 18, B: 24, A: 255}

	for !rl.WindowShouldClose() {
		// Keyboard
		switch {
		case rl.IsKeyPressed(rl.KeySpace):
			s.TogglePause()
		case rl.IsKeyPressed(rl.KeyS):
			s.StepOnce()
		case rl.IsKeyPressed(rl.KeyR):
			reset(s)
		case rl.IsKeyPressed(rl.KeyC):
			fluid.ToggleMode()
		case rl.IsKeyPressed(rl.KeyP):
			showPerf = !showPerf
		case rl.IsKeyPressed(rl.KeyTab):
			controls.Toggle()
		case rl.IsKeyPressed(rl.KeyK) && snapshotDir != "":
			saveSnapshot(s, snapshotDir)
		}

		// Pointer drag inside the domain only
		mouse := rl.GetMousePosition()
		active := rl.IsMouseButtonDown(rl.MouseButtonLeft) && view.Contains(mouse)
		s.Pointer().Update(view.ToDomain(mouse), active, float64(rl.GetFrameTime()))

		s.Update()
		s.RecordFrame()

		rl.BeginDrawing()
		rl.ClearBackground(background)

		view.DrawBounds(rl.Color{R: 80, G: 90, B: 100, A: 255})
		params := s.Params()
		fluid.Draw(s.View(), params.RestDensity)

		hud.Draw(ui.HUDData{
			Title:     "SPH Fluid",
			Backend:   s.Backend().Name(),
			Particles: cfg.Simulation.Particles,
			Frame:     s.FrameCount(),
			SimTime:   s.SimTime(),
			FPS:       rl.GetFPS(),
			Paused:    s.Paused(),
			ColorMode: fluid.Mode(),
		})

		edited, changed, action := controls.Draw(params, s.Paused())
		if changed {
			s.SetParams(edited)
		}
		switch action {
		case ui.ActionTogglePause:
			s.TogglePause()
		case ui.ActionStep:
			s.StepOnce()
		case ui.ActionReset:
			reset(s)
		case ui.ActionToggleColor:
			fluid.ToggleMode()
		}

		y := int32(10)
		if controls.IsVisible() {
			y = height / 2
		}
		diagnostics.SetPosition(panelX, y)
		y = diagnostics.Draw(s.Diagnostics(), params.RestDensity)
		if showPerf {
			perf.SetPosition(panelX, y+10)
			perf.Draw(s.PerfStats())
		}

		hud.DrawControls(height, "SPACE pause | S step | R reset | C colour | P perf | K snapshot | TAB panel | drag to stir")
		rl.EndDrawing()

		if maxFrames > 0 && s.FrameCount() >= maxFrames {
			break
		}
	}
}

func reset(s *sim.Simulation) {
	if err := s.Reset(); err != nil {
		slog.Error("reset failed", "error", err)
	}
}

func saveSnapshot(s *sim.Simulation, dir string) {
	if _, err := s.SaveSnapshot(dir); err != nil {
		slog.Error("failed to save snapshot", "error", err)
	}
}

func closeSimulation(s *sim.Simulation) {
	if err := s.Close(); err != nil {
		slog.Error("failed to close simulation", "error", err)
	}
}
