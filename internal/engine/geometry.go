package engine

import (
	"math"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

// Screen-space tolerances. Callers divide by the zoom scale so hit areas
// stay the same size on screen at every zoom level.
const (
	LineHitTolerance   = 6.0
	HandleHitTolerance = 14.0
	SelectionPadding   = 8.0

	DefaultFontSize = 18.0
	MinFontSize     = 8.0
	GlyphWidth      = 0.6

	minResizeScale = 0.01
)

// Bounds is an axis-aligned box in world space.
type Bounds struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

func boundsOf(first board.Point, rest ...board.Point) Bounds {
	b := Bounds{MinX: first.X, MaxX: first.X, MinY: first.Y, MaxY: first.Y}
	for _, p := range rest {
		b = b.extend(p)
	}
	return b
}

func (b Bounds) extend(p board.Point) Bounds {
	b.MinX = min(b.MinX, p.X)
	b.MaxX = max(b.MaxX, p.X)
	b.MinY = min(b.MinY, p.Y)
	b.MaxY = max(b.MaxY, p.Y)
	return b
}

func (b Bounds) Width() float64  { return b.MaxX - b.MinX }
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Contains checks if p lies inside the box grown by pad on every side.
func (b Bounds) Contains(p board.Point, pad float64) bool {
	return p.X >= b.MinX-pad && p.X <= b.MaxX+pad && p.Y >= b.MinY-pad && p.Y <= b.MaxY+pad
}

// BoundingBox returns the world-space extent of an element.
func BoundingBox(el board.Element) Bounds {
	if !el.Kind.Valid() {
		return anchorBounds(el.Data)
	}
	return shapeOps[el.Kind].bounds(el.Data)
}

func anchorBounds(d board.Data) Bounds {
	return boundsOf(board.Point{X: d.StartX, Y: d.StartY}, board.Point{X: d.EndX, Y: d.EndY})
}

func fontSize(d board.Data) float64 {
	if d.FontSize > 0 {
		return d.FontSize
	}
	return DefaultFontSize
}

// textBounds estimates the box of a text element; the anchor is the
// baseline start, so the glyphs extend upward from StartY.
func textBounds(d board.Data) Bounds {
	size := fontSize(d)
	width := float64(len([]rune(d.Text))) * size * GlyphWidth
	return Bounds{MinX: d.StartX, MaxX: d.StartX + width, MinY: d.StartY - size, MaxY: d.StartY}
}

// PointSegmentDistance returns the distance from p to the segment a-b.
func PointSegmentDistance(p, a, b board.Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy

	t := -1.0
	if lenSq != 0 {
		t = ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	}

	var cx, cy float64
	switch {
	case t < 0:
		cx, cy = a.X, a.Y
	case t > 1:
		cx, cy = b.X, b.Y
	default:
		cx, cy = a.X+t*dx, a.Y+t*dy
	}
	return math.Hypot(p.X-cx, p.Y-cy)
}

// HitTest returns the topmost element under the world point p. tolerance is
// the world-space distance within which thin shapes (lines, arrows,
// freehand strokes) count as hit.
func HitTest(p board.Point, elems []board.Element, tolerance float64) (board.Element, bool) {
	for i := len(elems) - 1; i >= 0; i-- {
		el := elems[i]
		if !el.Kind.Valid() {
			continue
		}
		if shapeOps[el.Kind].hit(el.Data, p, tolerance) {
			return el, true
		}
	}
	return board.Element{}, false
}

// Shift translates every coordinate of el by (dx, dy).
func Shift(el board.Element, dx, dy float64) board.Element {
	out := el.Clone()
	out.Data.StartX += dx
	out.Data.StartY += dy
	out.Data.EndX += dx
	out.Data.EndY += dy
	for i := range out.Data.Points {
		out.Data.Points[i].X += dx
		out.Data.Points[i].Y += dy
	}
	return out
}

// Handle names a resize grip at a corner of the selection box.
type Handle string

const (
	HandleNone        Handle = ""
	HandleTopLeft     Handle = "tl"
	HandleTopRight    Handle = "tr"
	HandleBottomRight Handle = "br"
	HandleBottomLeft  Handle = "bl"
)

func (h Handle) left() bool { return h == HandleTopLeft || h == HandleBottomLeft }
func (h Handle) top() bool  { return h == HandleTopLeft || h == HandleTopRight }

// HandlePoint is a handle and its world position.
type HandlePoint struct {
	Handle Handle
	At     board.Point
}

// Handles lists the corner grips of b in tl, tr, br, bl order.
func Handles(b Bounds) []HandlePoint {
	return []HandlePoint{
		{HandleTopLeft, board.Point{X: b.MinX, Y: b.MinY}},
		{HandleTopRight, board.Point{X: b.MaxX, Y: b.MinY}},
		{HandleBottomRight, board.Point{X: b.MaxX, Y: b.MaxY}},
		{HandleBottomLeft, board.Point{X: b.MinX, Y: b.MaxY}},
	}
}

// HitHandle returns the handle of el within tolerance of p, or HandleNone.
func HitHandle(p board.Point, el board.Element, tolerance float64) Handle {
	for _, h := range Handles(BoundingBox(el)) {
		if math.Abs(p.X-h.At.X) <= tolerance && math.Abs(p.Y-h.At.Y) <= tolerance {
			return h.Handle
		}
	}
	return HandleNone
}

// axisScale scales coordinates on one axis about a fixed origin.
type axisScale struct {
	origin float64
	factor float64
}

func (a axisScale) apply(v float64) float64 {
	return a.origin + (v-a.origin)*a.factor
}

func clampScale(s float64) float64 {
	if s < 0 {
		return -max(minResizeScale, -s)
	}
	return max(minResizeScale, s)
}

// Resize scales original so that the dragged handle follows target while
// the opposite corner of its bounding box stays put. Style fields come from
// el; geometry always derives from original so repeated moves don't drift.
func Resize(el, original board.Element, handle Handle, target board.Point) board.Element {
	if !original.Kind.Valid() || handle == HandleNone {
		return el
	}
	b := BoundingBox(original)
	width := b.Width()
	if width == 0 {
		width = 1
	}
	height := b.Height()
	if height == 0 {
		height = 1
	}

	x := axisScale{origin: b.MinX, factor: (target.X - b.MinX) / width}
	if handle.left() {
		x = axisScale{origin: b.MaxX, factor: (b.MaxX - target.X) / width}
	}
	y := axisScale{origin: b.MinY, factor: (target.Y - b.MinY) / height}
	if handle.top() {
		y = axisScale{origin: b.MaxY, factor: (b.MaxY - target.Y) / height}
	}
	x.factor = clampScale(x.factor)
	y.factor = clampScale(y.factor)

	out := el.Clone()
	shapeOps[original.Kind].resize(&out.Data, original.Data, x, y)
	return out
}

func scaleAnchors(dst *board.Data, src board.Data, x, y axisScale) {
	dst.StartX = x.apply(src.StartX)
	dst.EndX = x.apply(src.EndX)
	dst.StartY = y.apply(src.StartY)
	dst.EndY = y.apply(src.EndY)
}
