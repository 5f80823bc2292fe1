package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/sphfluid/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title       string
	Backend     string
	Particles   int
	Frame       int
	SimTime     float64
	FPS         int32
	Paused      bool
	ColorMode   string
	Diagnostics telemetry.Diagnostics
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD at the top-left corner.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("Backend: %s | Particles: %d | Colour: %s", data.Backend, data.Particles, data.ColorMode),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Frame: %d | Time: %.2fs | FPS: %d", data.Frame, data.SimTime, data.FPS),
		10, 55, 16, rl.LightGray,
	)

	statusText := "Running"
	if data.Paused {
		statusText = "PAUSED"
	}
	rl.DrawText(statusText, 10, 75, 16, rl.Yellow)
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// DiagnosticsPanel renders the latest diagnostics window.
type DiagnosticsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewDiagnosticsPanel creates a diagnostics panel.
func NewDiagnosticsPanel(x, y, width int32) *DiagnosticsPanel {
	return &DiagnosticsPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (d *DiagnosticsPanel) SetPosition(x, y int32) {
	d.x = x
	d.y = y
}

// Draw renders the panel and returns the Y position below it.
func (d *DiagnosticsPanel) Draw(diag telemetry.Diagnostics, restDensity float64) int32 {
	r := d.renderer
	padding := r.Theme.Padding
	lineHeight := r.Theme.LineHeight
	height := lineHeight*9 + padding*2

	r.DrawPanel(d.x, d.y, d.width, height)

	x := d.x + padding
	y := r.DrawSectionHeader(x, d.y+padding, "Diagnostics")
	inner := d.width - padding*2

	y = r.DrawLabelValue(x, y, "Mass", fmt.Sprintf("%.4g", diag.TotalMass))
	y = r.DrawLabelValue(x, y, "Momentum", fmt.Sprintf("(%.3g, %.3g)", diag.MomentumX, diag.MomentumY))
	y = r.DrawLabelValue(x, y, "Kinetic", fmt.Sprintf("%.4g", diag.KineticEnergy))
	y = r.DrawBar(x, y, "Density", diag.DensityMean, 2*restDensity, inner)
	y = r.DrawBar(x, y, "Density max", diag.DensityMax, 2*restDensity, inner)
	y = r.DrawLabelValue(x, y, "Pressure", fmt.Sprintf("%.4g", diag.PressureMean))
	y = r.DrawLabelValue(x, y, "Max speed", fmt.Sprintf("%.3g", diag.MaxSpeed))
	y = r.DrawLabelValue(x, y, "Outside", fmt.Sprintf("%d", diag.OutOfBounds))

	return d.y + height
}

// PerfPanel renders the per-phase step timing.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	x := p.x
	y := p.y

	rl.DrawText("Step Performance", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Avg: %s  Max: %s", stats.AvgTickDuration.Round(time.Microsecond), stats.MaxTickDuration.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	for _, name := range telemetry.PhaseOrder() {
		avg := stats.PhaseAvg[name]
		pct := stats.PhasePct[name]

		color := rl.LightGray
		if pct > 40 {
			color = rl.Red
		} else if pct > 20 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-16s %8s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
