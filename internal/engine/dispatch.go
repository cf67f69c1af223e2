package engine

import (
	"errors"
	"time"

	"github.com/drawroom/drawroom/canvas-go/internal/collab"
)

var errMissingElementID = errors.New("missing element id")

type messageHandler func(msg *collab.Message) error

func (e *Engine) messageHandlers() map[string]messageHandler {
	ignore := func(*collab.Message) error { return nil }
	return map[string]messageHandler{
		collab.TypeError:          e.onError,
		collab.TypeRoomJoined:     e.onRoomJoined,
		collab.TypeElementAdded:   e.onElementAdded,
		collab.TypeElementUpdated: e.onElementUpdated,
		collab.TypeElementDeleted: e.onElementDeleted,
		collab.TypeElementLive:    e.onElementLive,
		collab.TypePresenceJoin:   e.onPresenceJoin,
		collab.TypeChatNew:        ignore,
		collab.TypeChatTyping:     ignore,
	}
}

// Apply folds one link event into the session.
func (e *Engine) Apply(ev collab.Event) {
	switch ev.Kind {
	case collab.EventOpen:
		e.connected = true
		e.joined = false
		if e.roomID != "" {
			e.requestJoin()
		}
	case collab.EventClose:
		e.disconnect()
	case collab.EventMessage:
		if ev.Message != nil {
			e.HandleMessage(ev.Message)
		}
	case collab.EventSnapshot:
		e.applySnapshot(ev)
	}
}

// HandleMessage routes an inbound message to its handler. Unknown types
// are ignored and malformed payloads are logged and dropped.
func (e *Engine) HandleMessage(msg *collab.Message) {
	handle, ok := e.handlers[msg.Type]
	if !ok {
		e.logger.Debug("ignoring message", "type", msg.Type)
		return
	}
	if err := handle(msg); err != nil {
		e.logger.Warn("drop malformed message", "type", msg.Type, "error", err)
	}
}

// disconnect forgets everything tied to the connection. An interrupted
// gesture is abandoned, never committed.
func (e *Engine) disconnect() {
	e.connected = false
	e.joined = false
	e.joining = false
	e.abandonGesture()
	e.status = ""
	e.selectedID = ""
	e.scene.ResetLive()
}

func (e *Engine) applySnapshot(ev collab.Event) {
	if ev.RoomID != e.roomID {
		return
	}
	held := e.gesture == gestureMove || e.gesture == gestureResize
	e.scene.Replace(ev.Elements)

	if _, ok := e.scene.Get(e.selectedID); !ok {
		e.selectedID = ""
		if held {
			e.resetGesture()
		}
	}
}

func (e *Engine) onError(msg *collab.Message) error {
	var p collab.ErrorPayload
	err := msg.Decode(&p)
	e.status = p.Message
	if e.status == "" {
		e.status = StatusError
	}
	e.joined = false
	e.joining = false
	return err
}

func (e *Engine) onRoomJoined(msg *collab.Message) error {
	var p collab.RoomJoinedPayload
	err := msg.Decode(&p)
	if err == nil && p.RoomID != "" && p.RoomID != e.roomID {
		e.logger.Debug("ignoring join for another room", "room", p.RoomID)
		return nil
	}

	e.joined = true
	e.joining = false
	e.status = ""
	e.transport.RequestSnapshot(e.roomID)
	e.roster.Merge(p.OnlineUsers)
	return err
}

func (e *Engine) onElementAdded(msg *collab.Message) error {
	var p collab.ElementPayload
	if err := msg.Decode(&p); err != nil {
		return err
	}
	if p.Element.ID == "" {
		return errMissingElementID
	}
	e.status = ""
	e.scene.Upsert(p.Element)
	e.scene.ClearLive(p.Element.ID)
	return nil
}

func (e *Engine) onElementUpdated(msg *collab.Message) error {
	var p collab.UpdatePayload
	if err := msg.Decode(&p); err != nil {
		return err
	}
	if p.ElementID == "" {
		return errMissingElementID
	}
	e.status = ""
	e.scene.ClearLive(p.ElementID)
	_, err := e.scene.Patch(p.ElementID, p.Patch, e.now().UTC().Format(time.RFC3339Nano))
	return err
}

func (e *Engine) onElementDeleted(msg *collab.Message) error {
	var p collab.DeletePayload
	if err := msg.Decode(&p); err != nil {
		return err
	}
	if p.ElementID == "" {
		return errMissingElementID
	}
	e.status = ""
	e.removeLocal(p.ElementID)
	return nil
}

func (e *Engine) onElementLive(msg *collab.Message) error {
	var p collab.ElementPayload
	if err := msg.Decode(&p); err != nil {
		return err
	}
	if p.Element.ID == "" {
		return errMissingElementID
	}
	e.scene.SetLive(p.Element)
	return nil
}

func (e *Engine) onPresenceJoin(msg *collab.Message) error {
	var p collab.PresenceJoinPayload
	if err := msg.Decode(&p); err != nil {
		return err
	}
	e.roster.Set(p.UserID, p.Name)
	return nil
}
