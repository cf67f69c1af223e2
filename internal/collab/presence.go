package collab

import (
	"sync"
)

// Roster maps user ids to display names as they are learned from
// ROOM_JOINED and PRESENCE_JOIN.
type Roster struct {
	mu    sync.RWMutex
	names map[string]string // userID -> name
}

func NewRoster() *Roster {
	return &Roster{
		names: make(map[string]string),
	}
}

// Set records a name. Empty ids or names are ignored.
func (r *Roster) Set(userID, name string) {
	if userID == "" || name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[userID] = name
}

func (r *Roster) Merge(users []OnlineUser) {
	for _, u := range users {
		r.Set(u.UserID, u.Name)
	}
}

// Name returns the display name for userID, if known.
func (r *Roster) Name(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[userID]
	return name, ok
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
