package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/colorgrad"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/sphfluid/config"
	"github.com/pthm-cable/sphfluid/particles"
)

const paletteSize = 256

// ParticleRenderer draws particles as discs coloured by density or speed.
type ParticleRenderer struct {
	view   Viewport
	radius float64 // domain units
	mode   string

	// Palette upper bounds. Density is normalised by rest density.
	MaxDensityRatio float64
	MaxSpeed        float64

	density     []rl.Color
	speed       []rl.Color
	initialized bool
}

// NewParticleRenderer creates a particle renderer. Palettes are built on the
// first Draw or by an explicit Init.
func NewParticleRenderer(view Viewport, radius float64, mode string) *ParticleRenderer {
	return &ParticleRenderer{
		view:            view,
		radius:          radius,
		mode:            mode,
		MaxDensityRatio: 2,
		MaxSpeed:        2,
	}
}

// Init builds the colour lookup tables (must be called after the raylib
// window is created).
func (r *ParticleRenderer) Init() {
	if r.initialized {
		return
	}

	grad := colorgrad.Viridis()
	r.density = make([]rl.Color, 0, paletteSize)
	for _, c := range grad.Colors(paletteSize) {
		cr, cg, cb, ca := c.RGBA()
		r.density = append(r.density, rl.Color{R: uint8(cr >> 8), G: uint8(cg >> 8), B: uint8(cb >> 8), A: uint8(ca >> 8)})
	}

	// Blue for slow, red for fast.
	r.speed = make([]rl.Color, paletteSize)
	for i := range r.speed {
		t := float64(i) / (paletteSize - 1)
		cr, cg, cb := colorful.Hsv(240*(1-t), 0.85, 1).Clamped().RGB255()
		r.speed[i] = rl.Color{R: cr, G: cg, B: cb, A: 255}
	}

	r.initialized = true
}

// View returns the viewport the renderer draws into.
func (r *ParticleRenderer) View() Viewport {
	return r.view
}

// Mode returns the active colour mode.
func (r *ParticleRenderer) Mode() string {
	return r.mode
}

// ToggleMode switches between density and speed colouring.
func (r *ParticleRenderer) ToggleMode() string {
	if r.mode == config.ColorDensity {
		r.mode = config.ColorSpeed
	} else {
		r.mode = config.ColorDensity
	}
	return r.mode
}

// Draw renders every particle of s. Order is irrelevant, so a sorted view
// from the parallel backend can be passed directly.
func (r *ParticleRenderer) Draw(s *particles.State, restDensity float64) {
	if !r.initialized {
		r.Init()
	}

	px := float32(r.radius) * r.view.Size
	if px < 1 {
		px = 1
	}

	for i := range s.Position {
		var color rl.Color
		switch r.mode {
		case config.ColorSpeed:
			color = lookup(r.speed, r2.Norm(s.Velocity[i])/r.MaxSpeed)
		default:
			ratio := 0.0
			if restDensity > 0 {
				ratio = s.Density[i] / restDensity
			}
			color = lookup(r.density, ratio/r.MaxDensityRatio)
		}
		rl.DrawCircleV(r.view.ToScreen(s.Position[i]), px, color)
	}
}

// Unload frees the palettes.
func (r *ParticleRenderer) Unload() {
	if r.initialized {
		r.density = nil
		r.speed = nil
		r.initialized = false
	}
}

func lookup(lut []rl.Color, t float64) rl.Color {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return lut[int(t*float64(len(lut)-1))]
}
