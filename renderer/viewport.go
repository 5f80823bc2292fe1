// Package renderer draws the fluid domain with raylib.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r2"
)

// Viewport maps the unit-square domain onto a square screen region.
// Domain y grows upwards, screen y grows downwards.
type Viewport struct {
	X, Y float32 // top-left corner on screen
	Size float32 // side length in pixels
}

// FitViewport returns the largest square viewport that fits a w x h area
// with the given margin, centred vertically.
func FitViewport(w, h, margin int32) Viewport {
	side := min(w, h) - 2*margin
	if side < 1 {
		side = 1
	}
	return Viewport{
		X:    float32(margin),
		Y:    float32((h - side) / 2),
		Size: float32(side),
	}
}

// ToScreen converts a domain position to screen pixels.
func (v Viewport) ToScreen(p r2.Vec) rl.Vector2 {
	return rl.Vector2{
		X: v.X + float32(p.X)*v.Size,
		Y: v.Y + float32(1-p.Y)*v.Size,
	}
}

// ToDomain converts screen pixels to a domain position. Points outside the
// viewport map outside the unit square.
func (v Viewport) ToDomain(s rl.Vector2) r2.Vec {
	return r2.Vec{
		X: float64((s.X - v.X) / v.Size),
		Y: 1 - float64((s.Y-v.Y)/v.Size),
	}
}

// Contains reports whether the screen point lies inside the viewport.
func (v Viewport) Contains(s rl.Vector2) bool {
	return s.X >= v.X && s.X <= v.X+v.Size && s.Y >= v.Y && s.Y <= v.Y+v.Size
}

// DrawBounds outlines the domain.
func (v Viewport) DrawBounds(color rl.Color) {
	rl.DrawRectangleLinesEx(rl.Rectangle{X: v.X, Y: v.Y, Width: v.Size, Height: v.Size}, 2, color)
}
