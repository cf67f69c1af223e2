package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

func TestShapeOpsCoverEveryKind(t *testing.T) {
	for _, k := range board.Kinds() {
		ops := shapeOps[k]
		assert.NotNil(t, ops.bounds, "%s bounds", k)
		assert.NotNil(t, ops.hit, "%s hit", k)
		assert.NotNil(t, ops.resize, "%s resize", k)
		assert.NotNil(t, ops.render, "%s render", k)
	}
}

func TestViewportRoundTrip(t *testing.T) {
	views := []Viewport{
		NewViewport(),
		{PanX: 120, PanY: -45, Scale: 0.3},
		{PanX: -800.5, PanY: 33.25, Scale: 3.7},
	}
	points := []board.Point{{X: 0, Y: 0}, {X: 640, Y: 480}, {X: -12.5, Y: 1e4}}

	for _, v := range views {
		for _, p := range points {
			back := v.WorldToScreen(v.ScreenToWorld(p))
			assert.InDelta(t, p.X, back.X, 1e-6)
			assert.InDelta(t, p.Y, back.Y, 1e-6)
		}
	}
}

func TestZoomKeepsAnchorAndClamps(t *testing.T) {
	v := Viewport{PanX: 30, PanY: -20, Scale: 1.5}
	anchor := board.Point{X: 310, Y: 205}
	world := v.ScreenToWorld(anchor)

	v.ZoomAt(anchor, 1.8)
	after := v.WorldToScreen(world)
	assert.InDelta(t, anchor.X, after.X, 1e-9)
	assert.InDelta(t, anchor.Y, after.Y, 1e-9)

	v.ZoomAt(anchor, 100)
	assert.Equal(t, MaxZoom, v.Scale)
	after = v.WorldToScreen(world)
	assert.InDelta(t, anchor.X, after.X, 1e-9)

	v.ZoomAt(anchor, 1e-6)
	assert.Equal(t, MinZoom, v.Scale)
}

func TestWheelFactor(t *testing.T) {
	assert.InDelta(t, 1.05, WheelFactor(-3, false), 1e-12)
	assert.InDelta(t, 1/1.05, WheelFactor(3, false), 1e-12)
	assert.InDelta(t, 1.02, WheelFactor(-1, true), 1e-12)
	assert.InDelta(t, 1/1.02, WheelFactor(1, true), 1e-12)
}

func TestHitTestRectangle(t *testing.T) {
	elems := []board.Element{rectangle("r", "u1", 0, 0, 100, 100)}

	hit, ok := HitTest(pt(50, 50), elems, LineHitTolerance)
	require.True(t, ok)
	assert.Equal(t, "r", hit.ID)

	_, ok = HitTest(pt(150, 150), elems, LineHitTolerance)
	assert.False(t, ok)
}

func TestHitTestPrefersTopmost(t *testing.T) {
	elems := []board.Element{
		rectangle("bottom", "u1", 0, 0, 100, 100),
		rectangle("top", "u1", 50, 50, 150, 150),
	}
	hit, ok := HitTest(pt(75, 75), elems, LineHitTolerance)
	require.True(t, ok)
	assert.Equal(t, "top", hit.ID)
}

func TestHitTestPerKind(t *testing.T) {
	ellipse := board.Element{ID: "e", Kind: board.KindEllipse, Data: board.Data{StartX: 0, StartY: 0, EndX: 100, EndY: 50}}
	line := board.Element{ID: "l", Kind: board.KindLine, Data: board.Data{StartX: 0, StartY: 0, EndX: 100, EndY: 0}}
	dot := board.Element{ID: "f", Kind: board.KindFreehand, Data: board.Data{Points: []board.Point{{X: 10, Y: 10}}}}
	text := board.Element{ID: "t", Kind: board.KindText, Data: board.Data{StartX: 0, StartY: 100, Text: "abcd", FontSize: 10}}

	cases := []struct {
		name string
		el   board.Element
		p    board.Point
		want bool
	}{
		{"ellipse center", ellipse, pt(50, 25), true},
		{"ellipse corner", ellipse, pt(2, 2), false},
		{"line near", line, pt(50, 5), true},
		{"line far", line, pt(50, 7), false},
		{"line past end", line, pt(104, 0), true},
		{"single point stroke", dot, pt(12, 12), true},
		{"single point stroke far", dot, pt(30, 30), false},
		{"text inside", text, pt(20, 95), true},
		{"text right of estimate", text, pt(25, 95), false},
		{"text below baseline", text, pt(10, 101), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := HitTest(tc.p, []board.Element{tc.el}, LineHitTolerance)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestBoundingBoxIncludesPathPoints(t *testing.T) {
	el := board.Element{Kind: board.KindFreehand, Data: board.Data{
		StartX: 0, StartY: 0, EndX: 10, EndY: 10,
		Points: []board.Point{{X: 0, Y: 0}, {X: -5, Y: 30}, {X: 10, Y: 10}},
	}}
	assert.Equal(t, Bounds{MinX: -5, MaxX: 10, MinY: 0, MaxY: 30}, BoundingBox(el))
}

func TestPointSegmentDistance(t *testing.T) {
	a, b := pt(0, 0), pt(10, 0)
	assert.InDelta(t, 3.0, PointSegmentDistance(pt(5, 3), a, b), 1e-9)
	assert.InDelta(t, 5.0, PointSegmentDistance(pt(13, 4), a, b), 1e-9)
	assert.InDelta(t, 5.0, PointSegmentDistance(pt(3, 4), a, a), 1e-9)
}

func TestResizeTopLeftKeepsBottomRight(t *testing.T) {
	orig := rectangle("r", "u1", 0, 0, 100, 100)

	for _, target := range []board.Point{{X: -50, Y: -20}, {X: 40, Y: 70}, {X: 99.999, Y: 99.999}} {
		got := Resize(orig, orig, HandleTopLeft, target)
		assert.InDelta(t, 100.0, got.Data.EndX, 1e-9)
		assert.InDelta(t, 100.0, got.Data.EndY, 1e-9)
	}

	got := Resize(orig, orig, HandleTopLeft, pt(-50, -20))
	assert.InDelta(t, -50.0, got.Data.StartX, 1e-9)
	assert.InDelta(t, -20.0, got.Data.StartY, 1e-9)
}

func TestResizeClampsDegenerateScale(t *testing.T) {
	orig := rectangle("r", "u1", 0, 0, 100, 100)

	got := Resize(orig, orig, HandleBottomRight, pt(0, 0))
	b := BoundingBox(got)
	assert.InDelta(t, 1.0, b.Width(), 1e-9)
	assert.InDelta(t, 1.0, b.Height(), 1e-9)

	flipped := Resize(orig, orig, HandleBottomRight, pt(-50, 100))
	assert.InDelta(t, -50.0, flipped.Data.EndX, 1e-9)
	assert.InDelta(t, 0.0, flipped.Data.StartX, 1e-9)
}

func TestResizeScalesPathAndFont(t *testing.T) {
	path := board.Element{Kind: board.KindFreehand, Data: board.Data{
		StartX: 0, StartY: 0, EndX: 10, EndY: 10,
		Points: []board.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 10}},
	}}
	got := Resize(path, path, HandleBottomRight, pt(20, 30))
	assert.Equal(t, []board.Point{{X: 0, Y: 0}, {X: 10, Y: 15}, {X: 20, Y: 30}}, got.Data.Points)
	assert.Equal(t, []board.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 10}}, path.Data.Points, "original untouched")

	text := board.Element{Kind: board.KindText, Data: board.Data{StartX: 0, StartY: 20, EndX: 0, EndY: 20, Text: "hi", FontSize: 20}}
	grown := Resize(text, text, HandleBottomRight, pt(48, 40))
	assert.Equal(t, 40.0, grown.Data.FontSize)

	shrunk := Resize(text, text, HandleBottomRight, pt(1, 1))
	assert.Equal(t, MinFontSize, shrunk.Data.FontSize)
}

func TestShift(t *testing.T) {
	el := board.Element{Kind: board.KindFreehand, Data: board.Data{
		StartX: 1, StartY: 2, EndX: 3, EndY: 4,
		Points: []board.Point{{X: 1, Y: 2}},
	}}
	got := Shift(el, 10, -1)
	assert.Equal(t, 11.0, got.Data.StartX)
	assert.Equal(t, 1.0, got.Data.StartY)
	assert.Equal(t, 13.0, got.Data.EndX)
	assert.Equal(t, []board.Point{{X: 11, Y: 1}}, got.Data.Points)
	assert.Equal(t, []board.Point{{X: 1, Y: 2}}, el.Data.Points)
}

func TestHitHandle(t *testing.T) {
	el := rectangle("r", "u1", 0, 0, 100, 100)
	assert.Equal(t, HandleTopLeft, HitHandle(pt(3, -3), el, HandleHitTolerance))
	assert.Equal(t, HandleBottomRight, HitHandle(pt(110, 110), el, HandleHitTolerance))
	assert.Equal(t, HandleNone, HitHandle(pt(50, 50), el, HandleHitTolerance))
}

func TestRenderShapes(t *testing.T) {
	arrow := board.Element{ID: "a", Kind: board.KindArrow, Data: board.Data{StartX: 0, StartY: 0, EndX: 100, EndY: 0, Color: "#f00", StrokeWidth: 2}}
	cmds := shapeOps[board.KindArrow].render(arrow)
	require.Len(t, cmds, 2)
	assert.Equal(t, "#f00", cmds[0].Stroke)
	assert.Equal(t, "#f00", cmds[1].Fill, "arrow head is filled with the stroke color")

	text := board.Element{ID: "t", Kind: board.KindText, Data: board.Data{StartX: 5, StartY: 6, Text: "hi"}}
	cmds = shapeOps[board.KindText].render(text)
	require.Len(t, cmds, 1)
	assert.Equal(t, OpText, cmds[0].Op)
	assert.Equal(t, DefaultFontSize, cmds[0].FontSize)
	assert.Equal(t, "#fff", cmds[0].Fill)

	lone := board.Element{ID: "f", Kind: board.KindFreehand, Data: board.Data{Points: []board.Point{{X: 1, Y: 1}}}}
	assert.Empty(t, shapeOps[board.KindFreehand].render(lone))
}

func TestDrawCommandsToJSON(t *testing.T) {
	out, err := DrawCommandsToJSON(renderRectangle(rectangle("r", "u1", 0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Contains(t, out, `"op":"path"`)
	assert.Contains(t, out, `"objectId":"r"`)
}
