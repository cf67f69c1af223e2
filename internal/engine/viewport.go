package engine

import (
	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

const (
	MinZoom = 0.3
	MaxZoom = 4.0

	wheelStep = 1.05
	pinchStep = 1.02
)

// Viewport maps world coordinates to screen pixels:
// screen = world*Scale + Pan.
type Viewport struct {
	PanX  float64 `json:"panX"`
	PanY  float64 `json:"panY"`
	Scale float64 `json:"scale"`
}

func NewViewport() Viewport {
	return Viewport{Scale: 1}
}

// Matrix returns the world-to-screen transform.
func (v Viewport) Matrix() Matrix2D {
	return Translate(v.PanX, v.PanY).Multiply(Scale(v.Scale, v.Scale))
}

func (v Viewport) WorldToScreen(p board.Point) board.Point {
	x, y := v.Matrix().TransformPoint(p.X, p.Y)
	return board.Point{X: x, Y: y}
}

func (v Viewport) ScreenToWorld(p board.Point) board.Point {
	x, y := v.Matrix().Invert().TransformPoint(p.X, p.Y)
	return board.Point{X: x, Y: y}
}

// PixelsToWorld converts a screen-space distance to world units at the
// current zoom.
func (v Viewport) PixelsToWorld(px float64) float64 {
	return px / v.Scale
}

// PanBy shifts the view by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
}

// ZoomAt rescales by factor, clamped to [MinZoom, MaxZoom], keeping the
// world point under the screen point anchor fixed on screen.
func (v *Viewport) ZoomAt(anchor board.Point, factor float64) {
	before := v.ScreenToWorld(anchor)
	v.Scale = min(MaxZoom, max(MinZoom, v.Scale*factor))
	v.PanX = anchor.X - before.X*v.Scale
	v.PanY = anchor.Y - before.Y*v.Scale
}

// WheelFactor converts a wheel delta into a multiplicative zoom factor.
// Negative deltas zoom in. Pinch gestures arrive as ctrl-wheel and use a
// finer step.
func WheelFactor(deltaY float64, pinch bool) float64 {
	step := wheelStep
	if pinch {
		step = pinchStep
	}
	if deltaY < 0 {
		return step
	}
	return 1 / step
}
