package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

var (
	ErrNotFound = errors.New("element not found")
	ErrNotOwner = errors.New("element belongs to another user")
)

// Store is the authoritative in-memory element list of every room, in
// z-order.
type Store struct {
	mu    sync.RWMutex
	rooms map[string][]board.Element // roomID -> elements
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string][]board.Element),
	}
}

// List returns a copy of the elements of roomID.
func (s *Store) List(roomID string) []board.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elems := s.rooms[roomID]
	out := make([]board.Element, len(elems))
	for i, el := range elems {
		out[i] = el.Clone()
	}
	return out
}

// Add stores el for owner. Re-adding an id the owner already has replaces
// it in place and keeps its creation time.
func (s *Store) Add(roomID, owner string, el board.Element, now time.Time) (board.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := now.UTC().Format(time.RFC3339Nano)
	el = el.Clone()
	el.UserID = owner
	el.Data.UserID = owner
	el.CreatedAt = stamp
	el.UpdatedAt = stamp

	elems := s.rooms[roomID]
	if i := indexOf(elems, el.ID); i >= 0 {
		if elems[i].Owner() != owner {
			return board.Element{}, fmt.Errorf("add %s: %w", el.ID, ErrNotOwner)
		}
		el.CreatedAt = elems[i].CreatedAt
		elems[i] = el
		return el.Clone(), nil
	}
	s.rooms[roomID] = append(elems, el)
	return el.Clone(), nil
}

// Update merges a data patch into an element.
func (s *Store) Update(roomID, id string, patch json.RawMessage, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	elems := s.rooms[roomID]
	i := indexOf(elems, id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	merged, err := elems[i].Data.Merge(patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	// ownership is not part of the geometry
	merged.UserID = elems[i].Data.UserID
	elems[i].Data = merged
	elems[i].UpdatedAt = now.UTC().Format(time.RFC3339Nano)
	return nil
}

// Delete removes an element. Only its owner may delete it.
func (s *Store) Delete(roomID, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	elems := s.rooms[roomID]
	i := indexOf(elems, id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	if elems[i].Owner() != userID {
		return fmt.Errorf("delete %s: %w", id, ErrNotOwner)
	}
	s.rooms[roomID] = append(elems[:i], elems[i+1:]...)
	return nil
}

func indexOf(elems []board.Element, id string) int {
	for i := range elems {
		if elems[i].ID == id {
			return i
		}
	}
	return -1
}
