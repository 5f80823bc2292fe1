package ui

import (
	"fmt"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/sphfluid/physics"
)

// ControlsPanel renders the parameter sliders and the run buttons.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool

	// Slider upper bounds, fixed at construction from the initial params.
	maxStiffness float64
	maxSubsteps  int
}

// NewControlsPanel creates a controls panel sized for the initial params.
func NewControlsPanel(x, y, width int32, initial physics.Params) *ControlsPanel {
	return &ControlsPanel{
		renderer:     NewRenderer(),
		x:            x,
		y:            y,
		width:        width,
		visible:      true,
		maxStiffness: math.Max(4*initial.Stiffness, 1),
		maxSubsteps:  max(4*initial.Substeps, 8),
	}
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Draw renders the panel and returns the edited params, whether any slider
// moved, and the button pressed this frame.
func (c *ControlsPanel) Draw(p physics.Params, paused bool) (physics.Params, bool, Action) {
	if !c.visible {
		return p, false, ActionNone
	}

	r := c.renderer
	padding := r.Theme.Padding
	rowHeight := r.Theme.LineHeight + r.Theme.SliderHeight + 6
	height := padding*3 + r.Theme.LineHeight + rowHeight*5 + 30*2 + 8

	r.DrawPanel(c.x, c.y, c.width, height)

	x := float32(c.x + padding)
	y := c.y + padding
	y = r.DrawSectionHeader(int32(x), y, "Parameters")

	changed := false
	slider := func(label, format string, value, lo, hi float64) float64 {
		r.DrawLabel(int32(x), y, label)
		y += r.Theme.LineHeight
		width := float32(c.width - padding*2 - 60)
		got := gui.SliderBar(
			rl.Rectangle{X: x, Y: float32(y), Width: width, Height: float32(r.Theme.SliderHeight)},
			"", "",
			float32(value), float32(lo), float32(hi),
		)
		rl.DrawText(fmt.Sprintf(format, value), int32(x+width+8), y+2, r.Theme.FontSize, r.Theme.ValueColor)
		y += r.Theme.SliderHeight + 6
		if float64(got) != float64(float32(value)) {
			changed = true
			return float64(got)
		}
		return value
	}

	p.ParticleRestitution = slider("Particle restitution", "%.2f", p.ParticleRestitution, 0, 1)
	p.WallRestitution = slider("Wall restitution", "%.2f", p.WallRestitution, 0, 1)
	p.Stiffness = slider("Stiffness", "%.3g", p.Stiffness, 0, c.maxStiffness)
	h := slider("Smoothing radius", "%.4f", p.H, p.CellSize/4, p.CellSize)
	substeps := slider("Substeps", "%.0f", float64(p.Substeps), 1, float64(c.maxSubsteps))

	if h != p.H {
		p = p.WithSmoothingRadius(h)
	}
	p.Substeps = max(1, int(math.Round(substeps)))

	y += 8
	action := ActionNone
	fy := float32(y)
	if gui.Button(rl.Rectangle{X: x, Y: fy, Width: 120, Height: 26}, toggleText(paused, "Resume", "Pause")) {
		action = ActionTogglePause
	}
	if gui.Button(rl.Rectangle{X: x + 130, Y: fy, Width: 120, Height: 26}, "Step") {
		action = ActionStep
	}
	fy += 30
	if gui.Button(rl.Rectangle{X: x, Y: fy, Width: 120, Height: 26}, "Reset") {
		action = ActionReset
	}
	if gui.Button(rl.Rectangle{X: x + 130, Y: fy, Width: 120, Height: 26}, "Colour") {
		action = ActionToggleColor
	}

	return p, changed, action
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
