//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/drawroom/drawroom/canvas-go/internal/auth"
	"github.com/drawroom/drawroom/canvas-go/internal/board"
	"github.com/drawroom/drawroom/canvas-go/internal/collab"
	"github.com/drawroom/drawroom/canvas-go/internal/engine"
)

var (
	// mu serializes JS callbacks with the link event pump.
	mu     sync.Mutex
	eng    *engine.Engine
	link   *collab.Link
	token  string
	cancel context.CancelFunc
)

func main() {
	drawroomEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	drawroomEngine.Set("connect", js.FuncOf(connect))
	drawroomEngine.Set("reconnect", js.FuncOf(reconnect))
	drawroomEngine.Set("disconnect", js.FuncOf(disconnect))
	drawroomEngine.Set("setTool", js.FuncOf(setTool))
	drawroomEngine.Set("setColor", js.FuncOf(setColor))
	drawroomEngine.Set("setStrokeWidth", js.FuncOf(setStrokeWidth))
	drawroomEngine.Set("setFill", js.FuncOf(setFill))
	drawroomEngine.Set("setRoom", js.FuncOf(setRoom))
	drawroomEngine.Set("pointerDown", js.FuncOf(pointerDown))
	drawroomEngine.Set("pointerMove", js.FuncOf(pointerMove))
	drawroomEngine.Set("pointerUp", js.FuncOf(pointerUp))
	drawroomEngine.Set("pointerLeave", js.FuncOf(pointerLeave))
	drawroomEngine.Set("wheel", js.FuncOf(wheel))
	drawroomEngine.Set("keyDown", js.FuncOf(keyDown))
	drawroomEngine.Set("undo", js.FuncOf(undo))
	drawroomEngine.Set("redo", js.FuncOf(redo))

	// --- Queries (frontend ← engine) ---
	drawroomEngine.Set("render", js.FuncOf(render))
	drawroomEngine.Set("getState", js.FuncOf(getState))
	drawroomEngine.Set("getCursor", js.FuncOf(getCursor))
	drawroomEngine.Set("getStatus", js.FuncOf(getStatus))
	drawroomEngine.Set("getUserName", js.FuncOf(getUserName))

	js.Global().Set("drawroomEngine", drawroomEngine)
	js.Global().Set("drawroomWasmReady", js.ValueOf(true))

	select {}
}

// windowPrompter asks for text with window.prompt. Cancel yields nothing.
type windowPrompter struct{}

func (windowPrompter) Prompt(message string) (string, bool) {
	v := js.Global().Call("prompt", message)
	if v.Type() != js.TypeString {
		return "", false
	}
	return v.String(), true
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func okResult() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// withEngine runs fn under the lock when a session exists.
func withEngine(fn func(e *engine.Engine) interface{}) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if eng == nil {
		return nil
	}
	return fn(eng)
}

func point(args []js.Value) (board.Point, bool) {
	if len(args) < 2 {
		return board.Point{}, false
	}
	return board.Point{X: args[0].Float(), Y: args[1].Float()}, true
}

// pump applies link events and tells the page something changed.
func pump(ctx context.Context, l *collab.Link) {
	for {
		select {
		case ev := <-l.Events():
			mu.Lock()
			if l == link && eng != nil {
				eng.Apply(ev)
			}
			mu.Unlock()
			notify()
		case <-ctx.Done():
			return
		}
	}
}

func notify() {
	if cb := js.Global().Get("drawroomOnChange"); cb.Type() == js.TypeFunction {
		cb.Invoke()
	}
}

// --- Command Handlers ---

// connect(wsURL, apiBase, token, roomId)
func connect(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return js.ValueOf(map[string]interface{}{"error": "connect(wsURL, apiBase, token, roomId)"})
	}
	userID, err := auth.Subject(args[2].String())
	if err != nil {
		return errorResult(err)
	}

	mu.Lock()
	defer mu.Unlock()

	if cancel != nil {
		cancel()
		link.Close()
	}
	var ctx context.Context
	ctx, cancel = context.WithCancel(context.Background())

	token = args[2].String()
	link = collab.NewLink(args[0].String(), args[1].String())
	eng = engine.New(userID, args[3].String(), link, engine.WithPrompter(windowPrompter{}))

	go pump(ctx, link)
	link.Connect(ctx, token)
	return okResult()
}

func reconnect(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if link == nil {
		return nil
	}
	link.Connect(context.Background(), token)
	return nil
}

func disconnect(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if link != nil {
		link.Close()
	}
	return nil
}

func setTool(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return withEngine(func(e *engine.Engine) interface{} {
		if err := e.SetTool(engine.Tool(args[0].String())); err != nil {
			return errorResult(err)
		}
		return okResult()
	})
}

func setColor(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return withEngine(func(e *engine.Engine) interface{} {
		e.SetColor(args[0].String())
		return nil
	})
}

func setStrokeWidth(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return withEngine(func(e *engine.Engine) interface{} {
		e.SetStrokeWidth(args[0].Float())
		return nil
	})
}

func setFill(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return withEngine(func(e *engine.Engine) interface{} {
		e.SetFill(args[0].String())
		return nil
	})
}

func setRoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return withEngine(func(e *engine.Engine) interface{} {
		e.SetRoom(args[0].String())
		return nil
	})
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	p, ok := point(args)
	if !ok {
		return nil
	}
	return withEngine(func(e *engine.Engine) interface{} {
		e.PointerDown(p)
		return nil
	})
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	p, ok := point(args)
	if !ok {
		return nil
	}
	return withEngine(func(e *engine.Engine) interface{} {
		e.PointerMove(p)
		return nil
	})
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	return withEngine(func(e *engine.Engine) interface{} {
		e.PointerUp()
		return nil
	})
}

func pointerLeave(this js.Value, args []js.Value) interface{} {
	return withEngine(func(e *engine.Engine) interface{} {
		e.PointerLeave()
		return nil
	})
}

// wheel(x, y, deltaY, ctrlKey)
func wheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	p, _ := point(args)
	deltaY := args[2].Float()
	pinch := len(args) > 3 && args[3].Truthy()
	return withEngine(func(e *engine.Engine) interface{} {
		e.Wheel(p, deltaY, pinch)
		return nil
	})
}

// keyDown(key, ctrl, meta, shift) reports whether the page should prevent
// the default action.
func keyDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	mods := engine.Modifiers{
		Ctrl:  len(args) > 1 && args[1].Truthy(),
		Meta:  len(args) > 2 && args[2].Truthy(),
		Shift: len(args) > 3 && args[3].Truthy(),
	}
	res := withEngine(func(e *engine.Engine) interface{} {
		return js.ValueOf(e.KeyDown(args[0].String(), mods))
	})
	if res == nil {
		return js.ValueOf(false)
	}
	return res
}

func undo(this js.Value, args []js.Value) interface{} {
	return withEngine(func(e *engine.Engine) interface{} {
		e.Undo()
		return nil
	})
}

func redo(this js.Value, args []js.Value) interface{} {
	return withEngine(func(e *engine.Engine) interface{} {
		e.Redo()
		return nil
	})
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	res := withEngine(func(e *engine.Engine) interface{} {
		out, _ := engine.DrawCommandsToJSON(e.Render())
		return js.ValueOf(out)
	})
	if res == nil {
		return js.ValueOf("[]")
	}
	return res
}

func getState(this js.Value, args []js.Value) interface{} {
	res := withEngine(func(e *engine.Engine) interface{} {
		data, err := json.Marshal(e.State())
		if err != nil {
			return js.ValueOf("{}")
		}
		return js.ValueOf(string(data))
	})
	if res == nil {
		return js.ValueOf("{}")
	}
	return res
}

func getCursor(this js.Value, args []js.Value) interface{} {
	return withEngine(func(e *engine.Engine) interface{} {
		return js.ValueOf(string(e.Cursor()))
	})
}

func getStatus(this js.Value, args []js.Value) interface{} {
	return withEngine(func(e *engine.Engine) interface{} {
		return js.ValueOf(e.Status())
	})
}

func getUserName(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("")
	}
	return withEngine(func(e *engine.Engine) interface{} {
		return js.ValueOf(e.UserName(args[0].String()))
	})
}
