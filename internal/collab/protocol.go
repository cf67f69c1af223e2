package collab

import (
	"encoding/json"
	"fmt"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	// Client → server
	TypeRoomJoin      = "ROOM_JOIN"
	TypeElementAdd    = "BOARD_ELEMENT_ADD"
	TypeElementUpdate = "BOARD_ELEMENT_UPDATE"
	TypeElementDelete = "BOARD_ELEMENT_DELETE"

	// Both directions
	TypeElementLive = "BOARD_ELEMENT_LIVE"

	// Server → client
	TypeRoomJoined     = "ROOM_JOINED"
	TypeElementAdded   = "BOARD_ELEMENT_ADDED"
	TypeElementUpdated = "BOARD_ELEMENT_UPDATED"
	TypeElementDeleted = "BOARD_ELEMENT_DELETED"
	TypePresenceJoin   = "PRESENCE_JOIN"
	TypeError          = "ERROR"

	// Chat is carried on the same socket but handled elsewhere.
	TypeChatSend   = "CHAT_SEND"
	TypeChatNew    = "CHAT_NEW"
	TypeChatTyping = "CHAT_TYPING"
)

type RoomJoinPayload struct {
	RoomID string `json:"roomId"`
}

// ElementPayload carries a whole element: ADD, ADDED and LIVE.
type ElementPayload struct {
	RoomID  string        `json:"roomId,omitempty"`
	Element board.Element `json:"element"`
}

// UpdatePayload carries a geometry patch: UPDATE and UPDATED.
type UpdatePayload struct {
	RoomID    string          `json:"roomId,omitempty"`
	ElementID string          `json:"elementId"`
	Patch     json.RawMessage `json:"patch"`
}

// DeletePayload is used by DELETE and DELETED.
type DeletePayload struct {
	RoomID    string `json:"roomId,omitempty"`
	ElementID string `json:"elementId"`
}

type OnlineUser struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type RoomJoinedPayload struct {
	RoomID      string       `json:"roomId"`
	OnlineUsers []OnlineUser `json:"onlineUsers,omitempty"`
}

type PresenceJoinPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// SnapshotResponse is the body of GET /rooms/{roomId}/board-elements.
type SnapshotResponse struct {
	Elements []json.RawMessage `json:"elements"`
}

// NewMessage wraps payload in an envelope of the given type.
func NewMessage(typ string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Message{Type: typ, Payload: data}, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("decode %s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}
