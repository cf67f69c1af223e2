package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
	"github.com/drawroom/drawroom/canvas-go/internal/collab"
	"github.com/drawroom/drawroom/canvas-go/internal/typeid"
)

var ErrUnknownTool = errors.New("unknown tool")

type Tool string

const (
	ToolSelect    Tool = "select"
	ToolPan       Tool = "pan"
	ToolRectangle Tool = "rectangle"
	ToolEllipse   Tool = "ellipse"
	ToolLine      Tool = "line"
	ToolArrow     Tool = "arrow"
	ToolFreehand  Tool = "freehand"
	ToolText      Tool = "text"
	ToolErase     Tool = "erase"
)

// shapeKind reports the element kind a drawing tool creates.
func (t Tool) shapeKind() (board.Kind, bool) {
	switch t {
	case ToolRectangle:
		return board.KindRectangle, true
	case ToolEllipse:
		return board.KindEllipse, true
	case ToolLine:
		return board.KindLine, true
	case ToolArrow:
		return board.KindArrow, true
	case ToolFreehand:
		return board.KindFreehand, true
	}
	return 0, false
}

func (t Tool) Valid() bool {
	if _, ok := t.shapeKind(); ok {
		return true
	}
	switch t {
	case ToolSelect, ToolPan, ToolText, ToolErase:
		return true
	}
	return false
}

type Cursor string

const (
	CursorCrosshair  Cursor = "crosshair"
	CursorDefault    Cursor = "default"
	CursorText       Cursor = "text"
	CursorCell       Cursor = "cell"
	CursorGrab       Cursor = "grab"
	CursorGrabbing   Cursor = "grabbing"
	CursorResizeNWSE Cursor = "nwse-resize"
	CursorResizeNESW Cursor = "nesw-resize"
)

const (
	StatusJoinFirst    = "Join room first"
	StatusJoining      = "Joining room..."
	StatusNotConnected = "Not connected to room"
	StatusError        = "Error"
)

const (
	DefaultColor       = "#10b981"
	DefaultStrokeWidth = 2.0
	textPrompt         = "Enter text"
)

// Modifiers is the state of the modifier keys for a key press.
type Modifiers struct {
	Ctrl  bool
	Meta  bool
	Shift bool
}

// Transport carries outbound intents. Send must not block.
type Transport interface {
	Send(msg *collab.Message)
	RequestSnapshot(roomID string)
}

// Prompter asks the user for text content.
type Prompter interface {
	Prompt(message string) (string, bool)
}

type PromptFunc func(message string) (string, bool)

func (f PromptFunc) Prompt(message string) (string, bool) { return f(message) }

type gesture int

const (
	gestureNone gesture = iota
	gestureDraw
	gestureMove
	gestureResize
	gestureErase
	gesturePan
)

// Engine is one room session: it owns the scene, the viewport and all
// pointer gesture state. It is not safe for concurrent use; every command,
// query and inbound event must come from the same goroutine.
type Engine struct {
	userID    string
	roomID    string
	transport Transport
	prompter  Prompter
	newID     func() string
	now       func() time.Time
	logger    *slog.Logger

	scene    *board.Scene
	viewport Viewport
	ledger   Ledger
	roster   *collab.Roster
	handlers map[string]messageHandler

	// Tool configuration
	tool        Tool
	color       string
	strokeWidth float64
	fill        string

	// Connection state
	connected bool
	joined    bool
	joining   bool
	status    string

	// Gesture state
	gesture      gesture
	current      *board.Element
	selectedID   string
	handle       Handle
	hoverHandle  Handle
	dragOffset   board.Point
	snapshot     board.Element
	liveSent     bool
	panLast      board.Point
	eraseMine    []string
	eraseBlocked []string
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithPrompter(p Prompter) Option {
	return func(e *Engine) { e.prompter = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides the element id generator.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an engine for userID in roomID. Outbound intents go to
// transport.
func New(userID, roomID string, transport Transport, opts ...Option) *Engine {
	e := &Engine{
		userID:      userID,
		roomID:      roomID,
		transport:   transport,
		newID:       typeid.NewElementID,
		now:         time.Now,
		logger:      slog.Default(),
		scene:       board.NewScene(),
		viewport:    NewViewport(),
		roster:      collab.NewRoster(),
		tool:        ToolSelect,
		color:       DefaultColor,
		strokeWidth: DefaultStrokeWidth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.transport == nil {
		e.transport = nopTransport{}
	}
	e.handlers = e.messageHandlers()
	return e
}

type nopTransport struct{}

func (nopTransport) Send(*collab.Message)   {}
func (nopTransport) RequestSnapshot(string) {}

// --- Commands (UI → engine) ---

func (e *Engine) SetTool(t Tool) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTool, t)
	}
	if t != e.tool {
		e.abandonGesture()
	}
	e.tool = t
	e.hoverHandle = HandleNone
	return nil
}

func (e *Engine) SetColor(color string) {
	if color != "" {
		e.color = color
	}
}

func (e *Engine) SetStrokeWidth(w float64) {
	if w > 0 {
		e.strokeWidth = w
	}
}

// SetFill sets the fill for new rectangles and ellipses. An empty string
// or "transparent" means no fill.
func (e *Engine) SetFill(fill string) {
	e.fill = fill
}

// SetRoom switches the session to roomID. Everything scoped to the old
// room is dropped; when already connected the engine asks to join.
func (e *Engine) SetRoom(roomID string) {
	if roomID == e.roomID {
		return
	}
	e.abandonGesture()
	e.roomID = roomID
	e.scene.Clear()
	e.ledger.Clear()
	e.selectedID = ""
	e.joined = false
	e.joining = false
	e.status = ""
	if e.connected && roomID != "" {
		e.requestJoin()
	}
}

// PointerDown starts a gesture at a screen position.
func (e *Engine) PointerDown(screen board.Point) {
	if e.tool == ToolPan {
		e.gesture = gesturePan
		e.panLast = screen
		return
	}
	if !e.guard() {
		return
	}

	world := e.viewport.ScreenToWorld(screen)
	switch e.tool {
	case ToolSelect:
		e.beginSelect(world)
	case ToolErase:
		e.gesture = gestureErase
		e.eraseAt(world)
	case ToolText:
		e.placeText(world)
	default:
		e.beginShape(world)
	}
}

func (e *Engine) PointerMove(screen board.Point) {
	world := e.viewport.ScreenToWorld(screen)

	switch e.gesture {
	case gesturePan:
		e.viewport.PanBy(screen.X-e.panLast.X, screen.Y-e.panLast.Y)
		e.panLast = screen
	case gestureErase:
		e.eraseAt(world)
	case gestureResize:
		el, ok := e.scene.Get(e.selectedID)
		if !ok {
			e.resetGesture()
			return
		}
		e.applyTransform(Resize(el, e.snapshot, e.handle, world))
	case gestureMove:
		dx := world.X - e.dragOffset.X - e.snapshot.Data.StartX
		dy := world.Y - e.dragOffset.Y - e.snapshot.Data.StartY
		e.applyTransform(Shift(e.snapshot, dx, dy))
	case gestureDraw:
		e.extendShape(world)
	default:
		e.hoverHandle = HandleNone
		if e.tool != ToolSelect {
			return
		}
		if sel, ok := e.Selected(); ok {
			e.hoverHandle = HitHandle(world, sel, e.viewport.PixelsToWorld(HandleHitTolerance))
		}
	}
}

// PointerUp ends the active gesture, committing its result.
func (e *Engine) PointerUp() {
	switch e.gesture {
	case gestureMove, gestureResize:
		e.finishTransform()
	case gestureErase:
		e.finishErase()
	case gestureDraw:
		e.finishShape()
	}
	e.resetGesture()
}

// PointerLeave behaves like PointerUp.
func (e *Engine) PointerLeave() {
	e.PointerUp()
}

// Wheel zooms about the screen point under the cursor.
func (e *Engine) Wheel(screen board.Point, deltaY float64, pinch bool) {
	e.viewport.ZoomAt(screen, WheelFactor(deltaY, pinch))
}

// KeyDown handles the undo/redo shortcuts and reports whether the key was
// consumed.
func (e *Engine) KeyDown(key string, mods Modifiers) bool {
	if !mods.Ctrl && !mods.Meta {
		return false
	}
	switch strings.ToLower(key) {
	case "z":
		if mods.Shift {
			e.Redo()
		} else {
			e.Undo()
		}
		return true
	case "y":
		if mods.Shift {
			return false
		}
		e.Redo()
		return true
	}
	return false
}

// --- Queries (engine → UI) ---

func (e *Engine) UserID() string { return e.userID }
func (e *Engine) RoomID() string { return e.roomID }
func (e *Engine) Tool() Tool { return e.tool }
func (e *Engine) Status() string { return e.status }
func (e *Engine) Connected() bool { return e.connected }
func (e *Engine) Joined() bool { return e.joined }
func (e *Engine) Joining() bool { return e.joining }
func (e *Engine) Scene() *board.Scene { return e.scene }
func (e *Engine) Viewport() Viewport { return e.viewport }
func (e *Engine) Roster() *collab.Roster { return e.roster }
func (e *Engine) CanRedo() bool { return e.ledger.Len() > 0 }

// Selected returns the selected committed element.
func (e *Engine) Selected() (board.Element, bool) {
	if e.selectedID == "" {
		return board.Element{}, false
	}
	return e.scene.Get(e.selectedID)
}

// EraseTargets returns the ids gathered by the active erase gesture.
func (e *Engine) EraseTargets() (mine, blocked []string) {
	return append([]string(nil), e.eraseMine...), append([]string(nil), e.eraseBlocked...)
}

// UserName returns the display name of userID, or the id itself when no
// name is known.
func (e *Engine) UserName(userID string) string {
	if name, ok := e.roster.Name(userID); ok {
		return name
	}
	return userID
}

func (e *Engine) Cursor() Cursor {
	if e.tool == ToolSelect {
		h := e.hoverHandle
		if e.gesture == gestureResize {
			h = e.handle
		}
		switch h {
		case HandleTopLeft, HandleBottomRight:
			return CursorResizeNWSE
		case HandleTopRight, HandleBottomLeft:
			return CursorResizeNESW
		}
	}
	switch e.tool {
	case ToolPan:
		if e.gesture == gesturePan {
			return CursorGrabbing
		}
		return CursorGrab
	case ToolSelect:
		return CursorDefault
	case ToolText:
		return CursorText
	case ToolErase:
		return CursorCell
	}
	return CursorCrosshair
}

// Render compiles the current picture into draw commands.
func (e *Engine) Render() []DrawCommand {
	committed, overlays := e.scene.Visible(e.userID)
	f := frame{
		viewport:  e.viewport,
		committed: committed,
		overlays:  overlays,
		current:   e.current,
		dimmed:    toSet(e.eraseMine),
		blocked:   toSet(e.eraseBlocked),
	}
	if sel, ok := e.Selected(); ok && !e.heldByPeer(sel.ID) {
		f.selected = &sel
	}
	return compileDrawCommands(f)
}

// heldByPeer reports whether someone else is previewing id. Their overlay
// replaces the committed shape, so local selection chrome would frame
// geometry that is not on screen.
func (e *Engine) heldByPeer(id string) bool {
	live, ok := e.scene.Live(id)
	if !ok {
		return false
	}
	owner := live.Owner()
	return owner != "" && owner != e.userID
}

// State is a serializable summary for UI shells.
type State struct {
	UserID    string   `json:"userId"`
	RoomID    string   `json:"roomId"`
	Tool      Tool     `json:"tool"`
	Cursor    Cursor   `json:"cursor"`
	Status    string   `json:"status"`
	Connected bool     `json:"connected"`
	Joined    bool     `json:"joined"`
	Selected  string   `json:"selected,omitempty"`
	Elements  int      `json:"elements"`
	Live      int      `json:"live"`
	CanRedo   bool     `json:"canRedo"`
	Viewport  Viewport `json:"viewport"`
}

func (e *Engine) State() State {
	s := State{
		UserID:    e.userID,
		RoomID:    e.roomID,
		Tool:      e.tool,
		Cursor:    e.Cursor(),
		Status:    e.status,
		Connected: e.connected,
		Joined:    e.joined,
		Elements:  e.scene.Len(),
		Live:      e.scene.LiveCount(),
		CanRedo:   e.CanRedo(),
		Viewport:  e.viewport,
	}
	if sel, ok := e.Selected(); ok {
		s.Selected = sel.ID
	}
	return s
}

// --- Gestures ---

// guard admits an edit only on a joined connection. Otherwise it sets the
// status and, when connected, asks to join again.
func (e *Engine) guard() bool {
	if !e.connected || e.roomID == "" {
		e.status = StatusJoinFirst
		return false
	}
	if !e.joined {
		e.requestJoin()
		return false
	}
	return true
}

func (e *Engine) requestJoin() {
	e.joining = true
	e.status = StatusJoining
	e.send(collab.TypeRoomJoin, collab.RoomJoinPayload{RoomID: e.roomID})
}

// beginSelect picks what a select-tool press grabs: a handle of the
// selected element first, then the topmost element under the pointer, then
// the padded box of the current selection.
func (e *Engine) beginSelect(world board.Point) {
	sel, hasSel := e.Selected()
	if hasSel {
		if h := HitHandle(world, sel, e.viewport.PixelsToWorld(HandleHitTolerance)); h != HandleNone {
			e.gesture = gestureResize
			e.handle = h
			e.snapshot = sel.Clone()
			return
		}
	}

	if hit, ok := HitTest(world, e.scene.Elements(), e.viewport.PixelsToWorld(LineHitTolerance)); ok {
		e.selectedID = hit.ID
		e.beginMove(hit, world)
		return
	}

	if hasSel && BoundingBox(sel).Contains(world, e.viewport.PixelsToWorld(SelectionPadding)) {
		e.beginMove(sel, world)
		return
	}

	e.selectedID = ""
	e.resetGesture()
}

func (e *Engine) beginMove(el board.Element, world board.Point) {
	e.gesture = gestureMove
	e.handle = HandleNone
	e.dragOffset = board.Point{X: world.X - el.Data.StartX, Y: world.Y - el.Data.StartY}
	e.snapshot = el.Clone()
}

// applyTransform writes moved or resized geometry into the scene and
// broadcasts it as a live preview.
func (e *Engine) applyTransform(el board.Element) {
	ok := e.scene.Update(el.ID, func(dst *board.Element) {
		dst.Data = el.Data
	})
	if !ok {
		e.resetGesture()
		return
	}
	if e.sendLive(el) {
		e.liveSent = true
	}
}

// finishTransform commits a move or resize. Once a preview has gone out
// the update is always sent, so peers drop the overlay even when the
// element ended where it started.
func (e *Engine) finishTransform() {
	id := e.snapshot.ID
	e.scene.ClearLive(id)
	el, ok := e.scene.Get(id)
	if !ok {
		return
	}
	if !e.liveSent && reflect.DeepEqual(el.Data, e.snapshot.Data) {
		return
	}
	e.sendUpdate(el)
}

func (e *Engine) eraseAt(world board.Point) {
	hit, ok := HitTest(world, e.scene.Elements(), e.viewport.PixelsToWorld(LineHitTolerance))
	if !ok {
		return
	}
	if e.owns(hit) {
		e.eraseMine = appendUnique(e.eraseMine, hit.ID)
	} else {
		e.eraseBlocked = appendUnique(e.eraseBlocked, hit.ID)
	}
}

func (e *Engine) finishErase() {
	for _, id := range e.eraseMine {
		e.removeLocal(id)
		e.sendDelete(id)
	}
}

func (e *Engine) placeText(world board.Point) {
	if e.prompter == nil {
		return
	}
	text, ok := e.prompter.Prompt(textPrompt)
	if !ok || text == "" {
		return
	}
	el := board.Element{
		ID:     e.newID(),
		Kind:   board.KindText,
		UserID: e.userID,
		Data: board.Data{
			StartX:      world.X,
			StartY:      world.Y,
			EndX:        world.X,
			EndY:        world.Y,
			Text:        text,
			FontSize:    DefaultFontSize,
			Color:       e.color,
			StrokeWidth: e.strokeWidth,
			UserID:      e.userID,
		},
	}
	e.commit(el)
}

func (e *Engine) beginShape(world board.Point) {
	kind, ok := e.tool.shapeKind()
	if !ok {
		return
	}
	el := board.Element{
		ID:     e.newID(),
		Kind:   kind,
		UserID: e.userID,
		Data: board.Data{
			StartX:      world.X,
			StartY:      world.Y,
			EndX:        world.X,
			EndY:        world.Y,
			Color:       e.color,
			StrokeWidth: e.strokeWidth,
			UserID:      e.userID,
		},
	}
	switch kind {
	case board.KindFreehand:
		el.Data.Points = []board.Point{world}
	case board.KindRectangle, board.KindEllipse:
		if e.fill != "" && e.fill != "transparent" {
			el.Data.Fill = e.fill
		}
	}
	e.current = &el
	e.gesture = gestureDraw
}

func (e *Engine) extendShape(world board.Point) {
	if e.current == nil {
		return
	}
	next := e.current.Clone()
	next.Data.EndX = world.X
	next.Data.EndY = world.Y
	if next.Kind == board.KindFreehand {
		next.Data.Points = append(next.Data.Points, world)
	}
	e.current = &next
	e.sendLive(next)
}

func (e *Engine) finishShape() {
	if e.current == nil {
		return
	}
	el := *e.current
	e.current = nil
	e.scene.ClearLive(el.ID)
	e.commit(el)
}

// commit sends a new element and inserts it optimistically. A new commit
// makes earlier undos unrecoverable.
func (e *Engine) commit(el board.Element) {
	e.ledger.Clear()
	if !e.connected {
		e.status = StatusNotConnected
		return
	}
	e.sendAdd(el)

	stamp := e.now().UTC().Format(time.RFC3339Nano)
	el.CreatedAt = stamp
	el.UpdatedAt = stamp
	e.scene.Upsert(el)
}

// abandonGesture drops the active gesture without committing anything and
// puts a moved or resized element back where it started.
func (e *Engine) abandonGesture() {
	switch e.gesture {
	case gestureMove, gestureResize:
		snap := e.snapshot
		restored := e.scene.Update(snap.ID, func(dst *board.Element) {
			dst.Data = snap.Data.Clone()
		})
		e.scene.ClearLive(snap.ID)
		// peers saw previews; put them back on the committed geometry
		if restored && e.liveSent && e.connected && e.joined {
			e.sendUpdate(snap)
		}
	case gestureDraw:
		if e.current != nil {
			e.scene.ClearLive(e.current.ID)
		}
	}
	e.resetGesture()
}

func (e *Engine) resetGesture() {
	e.gesture = gestureNone
	e.current = nil
	e.handle = HandleNone
	e.hoverHandle = HandleNone
	e.snapshot = board.Element{}
	e.liveSent = false
	e.dragOffset = board.Point{}
	e.eraseMine = nil
	e.eraseBlocked = nil
}

// removeLocal deletes an element and its overlay, dropping the selection
// and any gesture that was holding it.
func (e *Engine) removeLocal(id string) {
	e.scene.Remove(id)
	e.scene.ClearLive(id)
	if e.selectedID == id {
		e.selectedID = ""
		if e.gesture == gestureMove || e.gesture == gestureResize {
			e.resetGesture()
		}
	}
}

func (e *Engine) owns(el board.Element) bool {
	return e.userID != "" && el.Owner() == e.userID
}

// --- Outbound ---

func (e *Engine) send(typ string, payload interface{}) {
	msg, err := collab.NewMessage(typ, payload)
	if err != nil {
		e.logger.Error("build message", "error", err, "type", typ)
		return
	}
	e.transport.Send(msg)
}

func (e *Engine) sendAdd(el board.Element) {
	e.send(collab.TypeElementAdd, collab.ElementPayload{RoomID: e.roomID, Element: el})
}

func (e *Engine) sendDelete(id string) {
	e.send(collab.TypeElementDelete, collab.DeletePayload{RoomID: e.roomID, ElementID: id})
}

func (e *Engine) sendUpdate(el board.Element) {
	patch, err := json.Marshal(el.Data)
	if err != nil {
		e.logger.Error("marshal patch", "error", err, "element", el.ID)
		return
	}
	e.send(collab.TypeElementUpdate, collab.UpdatePayload{RoomID: e.roomID, ElementID: el.ID, Patch: patch})
}

// sendLive broadcasts a preview and records it as the local user's own
// overlay. Previews are only sent on a joined connection; the result
// reports whether one went out.
func (e *Engine) sendLive(el board.Element) bool {
	if !e.connected || !e.joined {
		return false
	}
	e.send(collab.TypeElementLive, collab.ElementPayload{
		RoomID:  e.roomID,
		Element: board.Element{ID: el.ID, Kind: el.Kind, Data: el.Data},
	})

	own := el.Clone()
	if own.UserID == "" {
		own.UserID = e.userID
	}
	e.scene.SetLive(own)
	return true
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
