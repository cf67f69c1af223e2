package engine

import (
	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

// Ledger holds the local user's undone elements, newest last.
type Ledger struct {
	stack []board.Element
}

func (l *Ledger) Push(el board.Element) {
	l.stack = append(l.stack, el.Clone())
}

// Pop removes and returns the most recently undone element.
func (l *Ledger) Pop() (board.Element, bool) {
	if len(l.stack) == 0 {
		return board.Element{}, false
	}
	el := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	return el, true
}

func (l *Ledger) Len() int {
	return len(l.stack)
}

func (l *Ledger) Clear() {
	l.stack = nil
}

// newestOwnedBy scans from the top of the z-order down for an element
// owned by userID.
func newestOwnedBy(elems []board.Element, userID string) (board.Element, bool) {
	if userID == "" {
		return board.Element{}, false
	}
	for i := len(elems) - 1; i >= 0; i-- {
		if elems[i].Owner() == userID {
			return elems[i], true
		}
	}
	return board.Element{}, false
}

// Undo removes the newest element the local user owns, remembers it for
// Redo and emits a delete. The connection is only checked once there is
// something to undo.
func (e *Engine) Undo() {
	el, ok := newestOwnedBy(e.scene.Elements(), e.userID)
	if !ok || !e.guard() {
		return
	}
	e.removeLocal(el.ID)
	e.ledger.Push(el)
	e.sendDelete(el.ID)
}

// Redo re-adds the most recently undone element on top of the scene,
// provided the local user still owns it.
func (e *Engine) Redo() {
	if e.ledger.Len() == 0 || !e.guard() {
		return
	}
	el, ok := e.ledger.Pop()
	if !ok {
		return
	}
	if el.Owner() != e.userID {
		return
	}
	e.scene.Append(el)
	e.sendAdd(el)
}
