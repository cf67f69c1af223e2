package board

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownKind = errors.New("unknown element kind")

// Kind is the closed set of shapes an Element can take. Once an element is
// committed its kind never changes.
type Kind uint8

const (
	KindRectangle Kind = iota
	KindEllipse
	KindLine
	KindArrow
	KindFreehand
	KindText

	// KindCount is the number of kinds; tables indexed by Kind use it as length.
	KindCount
)

var kindNames = [KindCount]string{
	KindRectangle: "rectangle",
	KindEllipse:   "ellipse",
	KindLine:      "line",
	KindArrow:     "arrow",
	KindFreehand:  "freehand",
	KindText:      "text",
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, KindCount)
	for k := Kind(0); k < KindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k Kind) String() string {
	if k >= KindCount {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k < KindCount
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Data is the geometry and style payload of an element. Which fields matter
// depends on the kind: anchors for rectangle/ellipse/line/arrow, Points for
// freehand, Text and FontSize (anchored at StartX/StartY) for text.
type Data struct {
	StartX      float64 `json:"startX"`
	StartY      float64 `json:"startY"`
	EndX        float64 `json:"endX"`
	EndY        float64 `json:"endY"`
	Points      []Point `json:"points,omitempty"`
	Text        string  `json:"text,omitempty"`
	FontSize    float64 `json:"fontSize,omitempty"`
	Font        string  `json:"font,omitempty"`
	Color       string  `json:"color,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	UserID      string  `json:"userId,omitempty"`
}

// Clone returns a copy that shares no memory with d.
func (d Data) Clone() Data {
	if d.Points != nil {
		pts := make([]Point, len(d.Points))
		copy(pts, d.Points)
		d.Points = pts
	}
	return d
}

// Merge overlays the keys present in patch onto a copy of d. Keys absent
// from the patch keep their current value.
func (d Data) Merge(patch json.RawMessage) (Data, error) {
	// Unmarshal reuses the Points backing array, so merge into a clone.
	merged := d.Clone()
	if len(patch) == 0 {
		return merged, nil
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		return d, fmt.Errorf("decode patch: %w", err)
	}
	return merged, nil
}

type Element struct {
	ID        string `json:"elementId"`
	Kind      Kind   `json:"type"`
	Data      Data   `json:"data"`
	UserID    string `json:"userId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Owner is the user that created the element. Locally drawn elements that
// have not yet round-tripped carry the owner inside Data only.
func (e Element) Owner() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Data.UserID
}

func (e Element) Clone() Element {
	e.Data = e.Data.Clone()
	return e
}
