package engine

import (
	"math"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

// shapeOp holds the per-kind behavior of every geometric operation.
type shapeOp struct {
	bounds func(d board.Data) Bounds
	hit    func(d board.Data, p board.Point, tolerance float64) bool
	resize func(dst *board.Data, src board.Data, x, y axisScale)
	render func(el board.Element) []DrawCommand
}

// shapeOps must have exactly one entry per board.Kind.
var shapeOps = [board.KindCount]shapeOp{
	board.KindRectangle: {
		bounds: pathBounds,
		hit:    hitRectangle,
		resize: resizePath,
		render: renderRectangle,
	},
	board.KindEllipse: {
		bounds: pathBounds,
		hit:    hitEllipse,
		resize: resizePath,
		render: renderEllipse,
	},
	board.KindLine: {
		bounds: pathBounds,
		hit:    hitSegment,
		resize: resizePath,
		render: renderLine,
	},
	board.KindArrow: {
		bounds: pathBounds,
		hit:    hitSegment,
		resize: resizePath,
		render: renderArrow,
	},
	board.KindFreehand: {
		bounds: pathBounds,
		hit:    hitFreehand,
		resize: resizePath,
		render: renderFreehand,
	},
	board.KindText: {
		bounds: textBounds,
		hit:    hitText,
		resize: resizeText,
		render: renderText,
	},
}

// pathBounds covers the anchors plus any path points.
func pathBounds(d board.Data) Bounds {
	b := anchorBounds(d)
	for _, p := range d.Points {
		b = b.extend(p)
	}
	return b
}

func hitRectangle(d board.Data, p board.Point, _ float64) bool {
	return anchorBounds(d).Contains(p, 0)
}

func hitEllipse(d board.Data, p board.Point, _ float64) bool {
	cx := (d.StartX + d.EndX) / 2
	cy := (d.StartY + d.EndY) / 2
	rx := math.Abs(d.EndX-d.StartX) / 2
	ry := math.Abs(d.EndY-d.StartY) / 2
	if rx == 0 || ry == 0 {
		return false
	}
	nx := (p.X - cx) / rx
	ny := (p.Y - cy) / ry
	return nx*nx+ny*ny <= 1
}

func hitSegment(d board.Data, p board.Point, tolerance float64) bool {
	a := board.Point{X: d.StartX, Y: d.StartY}
	b := board.Point{X: d.EndX, Y: d.EndY}
	return PointSegmentDistance(p, a, b) < tolerance
}

func hitFreehand(d board.Data, p board.Point, tolerance float64) bool {
	pts := d.Points
	if len(pts) == 1 {
		return PointSegmentDistance(p, pts[0], pts[0]) < tolerance
	}
	for i := 0; i+1 < len(pts); i++ {
		if PointSegmentDistance(p, pts[i], pts[i+1]) < tolerance {
			return true
		}
	}
	return false
}

func hitText(d board.Data, p board.Point, _ float64) bool {
	return textBounds(d).Contains(p, 0)
}

func resizePath(dst *board.Data, src board.Data, x, y axisScale) {
	scaleAnchors(dst, src, x, y)
	if src.Points == nil {
		return
	}
	dst.Points = make([]board.Point, len(src.Points))
	for i, p := range src.Points {
		dst.Points[i] = board.Point{X: x.apply(p.X), Y: y.apply(p.Y)}
	}
}

func resizeText(dst *board.Data, src board.Data, x, y axisScale) {
	scaleAnchors(dst, src, x, y)
	dst.FontSize = max(MinFontSize, math.Round(fontSize(src)*math.Abs(y.factor)))
}

// --- Rendering ---

const (
	defaultStroke      = "#fff"
	defaultStrokeWidth = 2.0
	defaultFont        = "Arial"
	arrowHeadBase      = 10.0
)

func strokeOf(d board.Data) (string, float64) {
	color := d.Color
	if color == "" {
		color = defaultStroke
	}
	width := d.StrokeWidth
	if width <= 0 {
		width = defaultStrokeWidth
	}
	return color, width
}

func fillOf(d board.Data) string {
	if d.Fill == "transparent" {
		return ""
	}
	return d.Fill
}

func strokePath(el board.Element, path []PathCommand) DrawCommand {
	color, width := strokeOf(el.Data)
	return DrawCommand{
		Op:          OpPath,
		ObjectID:    el.ID,
		Path:        path,
		Stroke:      color,
		StrokeWidth: width,
		Fill:        fillOf(el.Data),
	}
}

func renderRectangle(el board.Element) []DrawCommand {
	d := el.Data
	return []DrawCommand{strokePath(el, []PathCommand{
		{"M", d.StartX, d.StartY},
		{"L", d.EndX, d.StartY},
		{"L", d.EndX, d.EndY},
		{"L", d.StartX, d.EndY},
		{"Z"},
	})}
}

func renderEllipse(el board.Element) []DrawCommand {
	d := el.Data
	return []DrawCommand{strokePath(el, []PathCommand{
		{"E", (d.StartX + d.EndX) / 2, (d.StartY + d.EndY) / 2, math.Abs(d.EndX-d.StartX) / 2, math.Abs(d.EndY-d.StartY) / 2},
	})}
}

func renderLine(el board.Element) []DrawCommand {
	d := el.Data
	cmd := strokePath(el, []PathCommand{{"M", d.StartX, d.StartY}, {"L", d.EndX, d.EndY}})
	cmd.Fill = ""
	return []DrawCommand{cmd}
}

func renderArrow(el board.Element) []DrawCommand {
	d := el.Data
	color, width := strokeOf(d)
	angle := math.Atan2(d.EndY-d.StartY, d.EndX-d.StartX)
	head := arrowHeadBase + width

	cmds := renderLine(el)
	cmds = append(cmds, DrawCommand{
		Op:       OpPath,
		ObjectID: el.ID,
		Path: []PathCommand{
			{"M", d.EndX, d.EndY},
			{"L", d.EndX - head*math.Cos(angle-math.Pi/6), d.EndY - head*math.Sin(angle-math.Pi/6)},
			{"L", d.EndX - head*math.Cos(angle+math.Pi/6), d.EndY - head*math.Sin(angle+math.Pi/6)},
			{"Z"},
		},
		Fill: color,
	})
	return cmds
}

func renderFreehand(el board.Element) []DrawCommand {
	pts := el.Data.Points
	if len(pts) < 2 {
		return nil
	}
	path := make([]PathCommand, 0, len(pts))
	path = append(path, PathCommand{"M", pts[0].X, pts[0].Y})
	for _, p := range pts[1:] {
		path = append(path, PathCommand{"L", p.X, p.Y})
	}
	cmd := strokePath(el, path)
	cmd.Fill = ""
	return []DrawCommand{cmd}
}

func renderText(el board.Element) []DrawCommand {
	d := el.Data
	color, _ := strokeOf(d)
	font := d.Font
	if font == "" {
		font = defaultFont
	}
	return []DrawCommand{{
		Op:       OpText,
		ObjectID: el.ID,
		Text:     d.Text,
		X:        d.StartX,
		Y:        d.StartY,
		FontSize: fontSize(d),
		Font:     font,
		Fill:     color,
	}}
}
