package engine

import (
	"encoding/json"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

const (
	OpPath      = "path"
	OpText      = "text"
	OpSelection = "selection"
	OpHandle    = "handle"
)

const (
	blockedStroke    = "#b91c1c"
	blockedOpacity   = 0.6
	dimmedOpacity    = 0.3
	selectionStroke  = "#22d3ee"
	selectionOutset  = 4.0
	handleSizePixels = 8.0
)

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "path", "text", "selection", "handle"
	ObjectID    string        `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] world-to-screen matrix
	Path        []PathCommand `json:"path,omitempty"`        // Path data for "path" ops
	Fill        string        `json:"fill,omitempty"`        // Fill color
	Stroke      string        `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // Stroke width in world units
	Opacity     float64       `json:"opacity,omitempty"`     // Global alpha
	Dash        []float64     `json:"dash,omitempty"`        // Line dash pattern
	Preview     bool          `json:"preview,omitempty"`     // In-progress local shape

	// Text ops
	Text     string  `json:"text,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Font     string  `json:"font,omitempty"`
}

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["Z"], plus
// ["E", cx, cy, rx, ry] for a full ellipse.
type PathCommand []interface{}

// frame is everything the compiler needs to draw one picture.
type frame struct {
	viewport  Viewport
	committed []board.Element
	overlays  []board.Element
	current   *board.Element
	selected  *board.Element
	dimmed    map[string]bool
	blocked   map[string]bool
}

// compileDrawCommands generates the draw command buffer in painter's order:
// committed elements, other users' live overlays, the local in-progress
// shape, then the selection box.
func compileDrawCommands(f frame) []DrawCommand {
	transform := f.viewport.Matrix().ToSlice()
	var commands []DrawCommand

	emit := func(el board.Element, opacity float64, blocked, preview bool) {
		if !el.Kind.Valid() {
			return
		}
		for _, cmd := range shapeOps[el.Kind].render(el) {
			cmd.Transform = transform
			cmd.Opacity = opacity
			cmd.Preview = preview
			if blocked && cmd.Stroke != "" {
				cmd.Stroke = blockedStroke
			}
			commands = append(commands, cmd)
		}
	}

	for _, el := range f.committed {
		switch {
		case f.blocked[el.ID]:
			emit(el, blockedOpacity, true, false)
		case f.dimmed[el.ID]:
			emit(el, dimmedOpacity, false, false)
		default:
			emit(el, 1, false, false)
		}
	}
	for _, el := range f.overlays {
		emit(el, 1, false, false)
	}
	if f.current != nil {
		emit(*f.current, 1, false, true)
	}
	if f.selected != nil {
		commands = append(commands, selectionCommands(*f.selected, f.viewport, transform)...)
	}
	return commands
}

func selectionCommands(el board.Element, v Viewport, transform []float64) []DrawCommand {
	b := BoundingBox(el)
	o := selectionOutset
	commands := []DrawCommand{{
		Op:        OpSelection,
		ObjectID:  el.ID,
		Transform: transform,
		Path: []PathCommand{
			{"M", b.MinX - o, b.MinY - o},
			{"L", b.MaxX + o, b.MinY - o},
			{"L", b.MaxX + o, b.MaxY + o},
			{"L", b.MinX - o, b.MaxY + o},
			{"Z"},
		},
		Stroke:      selectionStroke,
		StrokeWidth: v.PixelsToWorld(1),
		Dash:        []float64{6, 4},
		Opacity:     1,
	}}

	size := v.PixelsToWorld(handleSizePixels)
	for _, h := range Handles(b) {
		x, y := h.At.X-size/2, h.At.Y-size/2
		commands = append(commands, DrawCommand{
			Op:        OpHandle,
			ObjectID:  string(h.Handle),
			Transform: transform,
			Path: []PathCommand{
				{"M", x, y},
				{"L", x + size, y},
				{"L", x + size, y + size},
				{"L", x, y + size},
				{"Z"},
			},
			Fill:    selectionStroke,
			Opacity: 1,
		})
	}
	return commands
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
