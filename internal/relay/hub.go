package relay

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/drawroom/drawroom/canvas-go/internal/collab"
)

type Room struct {
	id      string
	clients map[string]*Client // clientID -> client
}

func NewRoom(id string) *Room {
	return &Room{
		id:      id,
		clients: make(map[string]*Client),
	}
}

// onlineUsers lists the distinct users in the room, sorted by id.
func (r *Room) onlineUsers() []collab.OnlineUser {
	seen := make(map[string]bool, len(r.clients))
	users := make([]collab.OnlineUser, 0, len(r.clients))
	for _, c := range r.clients {
		if seen[c.UserID] {
			continue
		}
		seen[c.UserID] = true
		users = append(users, collab.OnlineUser{UserID: c.UserID, Name: c.Name})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// Hub routes messages between the clients of each room and keeps the
// store in step with them.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // roomID -> room
	clients    map[string]*Client
	store      *Store
	now        func() time.Time
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(store *Store) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		clients:    make(map[string]*Client),
		store:      store,
		now:        time.Now,
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

// Stop ends Run. Connected clients keep their sockets until they close.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds client before its read pump starts, so its first frame
// always finds it registered.
func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		return
	default:
	}
	h.addClient(client)
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ClientID] = client
	h.mu.Unlock()

	slog.Info("client connected", "user", client.UserID, "client", client.ClientID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ClientID]; !ok {
		return
	}
	h.leaveLocked(client)
	delete(h.clients, client.ClientID)

	slog.Info("client disconnected", "user", client.UserID, "client", client.ClientID)
}

// leaveLocked takes client out of its current room.
func (h *Hub) leaveLocked(client *Client) {
	room, ok := h.rooms[client.roomID]
	if !ok {
		return
	}
	delete(room.clients, client.ClientID)
	if len(room.clients) == 0 {
		delete(h.rooms, room.id)
	}
	client.roomID = ""
}

func (h *Hub) handleMessage(sender *Client, msg *collab.Message) {
	switch msg.Type {
	case collab.TypeRoomJoin:
		h.handleJoin(sender, msg)
	case collab.TypeElementAdd:
		h.handleAdd(sender, msg)
	case collab.TypeElementUpdate:
		h.handleUpdate(sender, msg)
	case collab.TypeElementDelete:
		h.handleDelete(sender, msg)
	case collab.TypeElementLive:
		h.handleLive(sender, msg)
	case collab.TypeChatSend, collab.TypeChatTyping:
		slog.Debug("chat is not relayed", "user", sender.UserID)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handleJoin(sender *Client, msg *collab.Message) {
	var p collab.RoomJoinPayload
	if err := msg.Decode(&p); err != nil || p.RoomID == "" {
		h.reply(sender, "roomId is required")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[sender.ClientID]; !ok {
		return
	}
	if sender.roomID != p.RoomID {
		h.leaveLocked(sender)
		room, ok := h.rooms[p.RoomID]
		if !ok {
			room = NewRoom(p.RoomID)
			h.rooms[p.RoomID] = room
		}
		room.clients[sender.ClientID] = sender
		sender.roomID = p.RoomID
	}
	room := h.rooms[p.RoomID]

	joined, err := collab.NewMessage(collab.TypeRoomJoined, collab.RoomJoinedPayload{
		RoomID:      p.RoomID,
		OnlineUsers: room.onlineUsers(),
	})
	if err != nil {
		slog.Error("build join reply", "error", err)
		return
	}
	sender.Send(joined)

	presence, err := collab.NewMessage(collab.TypePresenceJoin, collab.PresenceJoinPayload{
		UserID: sender.UserID,
		Name:   sender.Name,
	})
	if err != nil {
		slog.Error("build presence", "error", err)
		return
	}
	h.broadcastLocked(p.RoomID, presence, sender.ClientID)

	slog.Info("client joined room", "user", sender.UserID, "room", p.RoomID)
}

func (h *Hub) handleAdd(sender *Client, msg *collab.Message) {
	var p collab.ElementPayload
	if err := msg.Decode(&p); err != nil || p.Element.ID == "" {
		slog.Warn("invalid add payload", "error", err, "user", sender.UserID)
		h.reply(sender, "Invalid element")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	roomID, ok := h.memberLocked(sender, p.RoomID)
	if !ok {
		return
	}

	el, err := h.store.Add(roomID, sender.UserID, p.Element, h.now())
	if err != nil {
		h.replyErr(sender, err)
		return
	}
	out, err := collab.NewMessage(collab.TypeElementAdded, collab.ElementPayload{RoomID: roomID, Element: el})
	if err != nil {
		slog.Error("build added", "error", err)
		return
	}
	h.broadcastLocked(roomID, out, "")
}

func (h *Hub) handleUpdate(sender *Client, msg *collab.Message) {
	var p collab.UpdatePayload
	if err := msg.Decode(&p); err != nil || p.ElementID == "" {
		slog.Warn("invalid update payload", "error", err, "user", sender.UserID)
		h.reply(sender, "Invalid update")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	roomID, ok := h.memberLocked(sender, p.RoomID)
	if !ok {
		return
	}

	if err := h.store.Update(roomID, p.ElementID, p.Patch, h.now()); err != nil {
		h.replyErr(sender, err)
		return
	}
	out, err := collab.NewMessage(collab.TypeElementUpdated, collab.UpdatePayload{
		RoomID:    roomID,
		ElementID: p.ElementID,
		Patch:     p.Patch,
	})
	if err != nil {
		slog.Error("build updated", "error", err)
		return
	}
	h.broadcastLocked(roomID, out, "")
}

func (h *Hub) handleDelete(sender *Client, msg *collab.Message) {
	var p collab.DeletePayload
	if err := msg.Decode(&p); err != nil || p.ElementID == "" {
		slog.Warn("invalid delete payload", "error", err, "user", sender.UserID)
		h.reply(sender, "Invalid delete")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	roomID, ok := h.memberLocked(sender, p.RoomID)
	if !ok {
		return
	}

	if err := h.store.Delete(roomID, p.ElementID, sender.UserID); err != nil {
		h.replyErr(sender, err)
		return
	}
	out, err := collab.NewMessage(collab.TypeElementDeleted, collab.DeletePayload{RoomID: roomID, ElementID: p.ElementID})
	if err != nil {
		slog.Error("build deleted", "error", err)
		return
	}
	h.broadcastLocked(roomID, out, "")
}

// handleLive forwards a preview to everyone else, stamped with its author.
// Previews are never stored.
func (h *Hub) handleLive(sender *Client, msg *collab.Message) {
	var p collab.ElementPayload
	if err := msg.Decode(&p); err != nil || p.Element.ID == "" {
		slog.Debug("invalid live payload", "error", err, "user", sender.UserID)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	roomID, ok := h.memberLocked(sender, p.RoomID)
	if !ok {
		return
	}

	p.RoomID = roomID
	p.Element.UserID = sender.UserID
	out, err := collab.NewMessage(collab.TypeElementLive, p)
	if err != nil {
		slog.Error("build live", "error", err)
		return
	}
	h.broadcastLocked(roomID, out, sender.ClientID)
}

// memberLocked checks that sender has joined the room it is writing to.
func (h *Hub) memberLocked(sender *Client, roomID string) (string, bool) {
	if sender.roomID == "" {
		sender.Send(errorMessage("Join room first"))
		return "", false
	}
	if roomID != "" && roomID != sender.roomID {
		sender.Send(errorMessage("Not a member of this room"))
		return "", false
	}
	return sender.roomID, true
}

func (h *Hub) reply(client *Client, text string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.ClientID]; ok {
		client.Send(errorMessage(text))
	}
}

func (h *Hub) replyErr(client *Client, err error) {
	text := "Request failed"
	switch {
	case errors.Is(err, ErrNotOwner):
		text = "You can only change your own elements"
	case errors.Is(err, ErrNotFound):
		text = "Element not found"
	}
	slog.Debug("rejecting request", "error", err, "user", client.UserID)
	client.Send(errorMessage(text))
}

func errorMessage(text string) *collab.Message {
	msg, err := collab.NewMessage(collab.TypeError, collab.ErrorPayload{Message: text})
	if err != nil {
		return &collab.Message{Type: collab.TypeError}
	}
	return msg
}

// broadcastLocked sends msg to every client in roomID except
// excludeClientID. h.mu must be held.
func (h *Hub) broadcastLocked(roomID string, msg *collab.Message, excludeClientID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			c.Send(msg)
		}
	}
}

// RoomCount reports how many rooms have at least one client.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
