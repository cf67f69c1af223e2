package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
	"github.com/drawroom/drawroom/canvas-go/internal/engine"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("usage")
)

// action is what the loop should do after a script line.
type action int

const (
	actionNone action = iota
	actionRender
	actionStatus
	actionReconnect
	actionWait
	actionQuit
)

// session holds what the script drives besides the engine itself.
type session struct {
	eng         *engine.Engine
	pendingText string
}

// Prompt answers the text tool with the words of the last `text` line.
func (s *session) Prompt(string) (string, bool) {
	text := s.pendingText
	s.pendingText = ""
	return text, text != ""
}

// exec runs one script line. The returned duration is set for actionWait.
func (s *session) exec(line string) (action, time.Duration, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return actionNone, 0, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "tool":
		if len(args) != 1 {
			return actionNone, 0, fmt.Errorf("%w: tool <name>", errUsage)
		}
		return actionNone, 0, s.eng.SetTool(engine.Tool(args[0]))
	case "color":
		if len(args) != 1 {
			return actionNone, 0, fmt.Errorf("%w: color <css color>", errUsage)
		}
		s.eng.SetColor(args[0])
	case "fill":
		if len(args) != 1 {
			return actionNone, 0, fmt.Errorf("%w: fill <css color|transparent>", errUsage)
		}
		s.eng.SetFill(args[0])
	case "width":
		w, err := floats(args, 1)
		if err != nil {
			return actionNone, 0, fmt.Errorf("width: %w", err)
		}
		s.eng.SetStrokeWidth(w[0])
	case "down", "move":
		p, err := floats(args, 2)
		if err != nil {
			return actionNone, 0, fmt.Errorf("%s: %w", cmd, err)
		}
		pt := board.Point{X: p[0], Y: p[1]}
		if cmd == "down" {
			s.eng.PointerDown(pt)
		} else {
			s.eng.PointerMove(pt)
		}
	case "up":
		s.eng.PointerUp()
	case "leave":
		s.eng.PointerLeave()
	case "wheel":
		pinch := len(args) == 4 && args[3] == "pinch"
		if pinch {
			args = args[:3]
		}
		p, err := floats(args, 3)
		if err != nil {
			return actionNone, 0, fmt.Errorf("wheel: %w", err)
		}
		s.eng.Wheel(board.Point{X: p[0], Y: p[1]}, p[2], pinch)
	case "text":
		if len(args) < 3 {
			return actionNone, 0, fmt.Errorf("%w: text <x> <y> <words...>", errUsage)
		}
		p, err := floats(args[:2], 2)
		if err != nil {
			return actionNone, 0, fmt.Errorf("text: %w", err)
		}
		prev := s.eng.Tool()
		if err := s.eng.SetTool(engine.ToolText); err != nil {
			return actionNone, 0, err
		}
		s.pendingText = strings.Join(args[2:], " ")
		s.eng.PointerDown(board.Point{X: p[0], Y: p[1]})
		s.eng.PointerUp()
		s.pendingText = ""
		return actionNone, 0, s.eng.SetTool(prev)
	case "key":
		if len(args) < 1 {
			return actionNone, 0, fmt.Errorf("%w: key <key> [ctrl] [meta] [shift]", errUsage)
		}
		var mods engine.Modifiers
		for _, m := range args[1:] {
			switch m {
			case "ctrl":
				mods.Ctrl = true
			case "meta":
				mods.Meta = true
			case "shift":
				mods.Shift = true
			default:
				return actionNone, 0, fmt.Errorf("key: unknown modifier %q", m)
			}
		}
		s.eng.KeyDown(args[0], mods)
	case "undo":
		s.eng.Undo()
	case "redo":
		s.eng.Redo()
	case "room":
		if len(args) != 1 {
			return actionNone, 0, fmt.Errorf("%w: room <id>", errUsage)
		}
		s.eng.SetRoom(args[0])
	case "render":
		return actionRender, 0, nil
	case "status":
		return actionStatus, 0, nil
	case "reconnect":
		return actionReconnect, 0, nil
	case "wait":
		ms, err := floats(args, 1)
		if err != nil || ms[0] < 0 {
			return actionNone, 0, fmt.Errorf("%w: wait <ms>", errUsage)
		}
		return actionWait, time.Duration(ms[0] * float64(time.Millisecond)), nil
	case "quit", "exit":
		return actionQuit, 0, nil
	default:
		return actionNone, 0, fmt.Errorf("%w: %q", errUnknownCommand, cmd)
	}
	return actionNone, 0, nil
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%w: want %d numbers, got %d", errUsage, n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}
