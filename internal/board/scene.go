package board

import (
	"encoding/json"
	"sort"
)

// Scene is the ordered set of committed elements (index order is z-order,
// later entries draw on top) plus the live overlays keyed by element id.
//
// A Scene is not safe for concurrent use; callers serialize access.
type Scene struct {
	elements []Element
	live     map[string]Element
}

func NewScene() *Scene {
	return &Scene{
		live: make(map[string]Element),
	}
}

// Len returns the number of committed elements.
func (s *Scene) Len() int {
	return len(s.elements)
}

// Elements returns a copy of the committed elements in z-order.
func (s *Scene) Elements() []Element {
	out := make([]Element, len(s.elements))
	copy(out, s.elements)
	return out
}

func (s *Scene) index(id string) int {
	for i := range s.elements {
		if s.elements[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Scene) Get(id string) (Element, bool) {
	i := s.index(id)
	if i < 0 {
		return Element{}, false
	}
	return s.elements[i], true
}

// Replace swaps the committed set for elems. When an id occurs more than
// once the last occurrence wins.
func (s *Scene) Replace(elems []Element) {
	s.elements = s.elements[:0]
	for _, el := range elems {
		s.Upsert(el)
	}
}

// Upsert replaces the committed element with the same id in place, or
// appends el on top when the id is new.
func (s *Scene) Upsert(el Element) {
	if i := s.index(el.ID); i >= 0 {
		s.elements[i] = el
		return
	}
	s.elements = append(s.elements, el)
}

// Append puts el on top of the z-order, dropping any earlier copy.
func (s *Scene) Append(el Element) {
	if i := s.index(el.ID); i >= 0 {
		s.elements = append(s.elements[:i], s.elements[i+1:]...)
	}
	s.elements = append(s.elements, el)
}

// Update applies fn to the committed element with the given id.
func (s *Scene) Update(id string, fn func(*Element)) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	fn(&s.elements[i])
	return true
}

// Patch merges a geometry patch into the committed element and stamps
// updatedAt. Unknown ids are ignored.
func (s *Scene) Patch(id string, patch json.RawMessage, updatedAt string) (bool, error) {
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	merged, err := s.elements[i].Data.Merge(patch)
	if err != nil {
		return false, err
	}
	s.elements[i].Data = merged
	s.elements[i].UpdatedAt = updatedAt
	return true, nil
}

func (s *Scene) Remove(id string) (Element, bool) {
	i := s.index(id)
	if i < 0 {
		return Element{}, false
	}
	el := s.elements[i]
	s.elements = append(s.elements[:i], s.elements[i+1:]...)
	return el, true
}

// Clear drops every committed element and live overlay.
func (s *Scene) Clear() {
	s.elements = nil
	s.live = make(map[string]Element)
}

func (s *Scene) SetLive(el Element) {
	s.live[el.ID] = el
}

func (s *Scene) ClearLive(id string) {
	delete(s.live, id)
}

func (s *Scene) Live(id string) (Element, bool) {
	el, ok := s.live[id]
	return el, ok
}

func (s *Scene) LiveCount() int {
	return len(s.live)
}

func (s *Scene) ResetLive() {
	s.live = make(map[string]Element)
}

// Visible splits the scene into what a viewer should draw: the committed
// elements, minus any hidden by another user's live overlay, followed by
// the overlays of other users sorted by id. The viewer's own overlays never
// hide anything and are never drawn.
func (s *Scene) Visible(viewer string) (committed []Element, overlays []Element) {
	committed = make([]Element, 0, len(s.elements))
	for _, el := range s.elements {
		if live, ok := s.live[el.ID]; ok {
			if owner := live.Owner(); owner != "" && owner != viewer {
				continue
			}
		}
		committed = append(committed, el)
	}

	for _, live := range s.live {
		if live.Owner() == viewer {
			continue
		}
		overlays = append(overlays, live)
	}
	sort.Slice(overlays, func(i, j int) bool { return overlays[i].ID < overlays[j].ID })
	return committed, overlays
}
