package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom/canvas-go/internal/auth"
	"github.com/drawroom/drawroom/canvas-go/internal/board"
	"github.com/drawroom/drawroom/canvas-go/internal/collab"
	"github.com/drawroom/drawroom/canvas-go/internal/engine"
)

const testRoom = "room1"

type testRelay struct {
	ts     *httptest.Server
	issuer *auth.Issuer
	store  *Store
	hub    *Hub
}

func startRelay(t *testing.T) *testRelay {
	t.Helper()
	store := NewStore()
	hub := NewHub(store)
	go hub.Run()
	issuer := auth.NewIssuer("secret")
	srv := NewServer(hub, store, issuer, []string{"http://localhost:5173"}, true)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		hub.Stop()
	})
	return &testRelay{ts: ts, issuer: issuer, store: store, hub: hub}
}

func (r *testRelay) wsURL() string {
	return "ws" + strings.TrimPrefix(r.ts.URL, "http") + "/ws"
}

type peer struct {
	link   *collab.Link
	engine *engine.Engine
	token  string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (r *testRelay) join(t *testing.T, userID, name string) *peer {
	t.Helper()
	token, err := r.issuer.Issue(userID, name)
	require.NoError(t, err)

	link := collab.NewLink(r.wsURL(), r.ts.URL, collab.WithLogger(quietLogger()))
	eng := engine.New(userID, testRoom, link, engine.WithLogger(quietLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		link.Close()
		cancel()
	})
	link.Connect(ctx, token)
	return &peer{link: link, engine: eng, token: token}
}

// settle feeds link events into their engines until cond holds.
func settle(t *testing.T, peers []*peer, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, p := range peers {
			drain(p)
		}
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

// idle pumps events for d without waiting on anything.
func idle(peers []*peer, d time.Duration) {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
		for _, p := range peers {
			drain(p)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func drain(p *peer) {
	for {
		select {
		case ev := <-p.link.Events():
			p.engine.Apply(ev)
		default:
			return
		}
	}
}

func drawRect(e *engine.Engine) {
	e.PointerDown(board.Point{X: 10, Y: 10})
	e.PointerMove(board.Point{X: 60, Y: 40})
	e.PointerUp()
}

func TestRelayCollaboration(t *testing.T) {
	r := startRelay(t)
	a := r.join(t, "user_a", "Ada")
	b := r.join(t, "user_b", "Grace")
	peers := []*peer{a, b}

	settle(t, peers, func() bool { return a.engine.Joined() && b.engine.Joined() })
	// let the join snapshots land before drawing
	idle(peers, 200*time.Millisecond)
	settle(t, peers, func() bool {
		name, ok := a.engine.Roster().Name("user_b")
		return ok && name == "Grace"
	})

	require.NoError(t, a.engine.SetTool(engine.ToolRectangle))
	drawRect(a.engine)

	settle(t, peers, func() bool {
		return a.engine.Scene().Len() == 1 && b.engine.Scene().Len() == 1
	})
	el := b.engine.Scene().Elements()[0]
	assert.Equal(t, "user_a", el.Owner())
	assert.Equal(t, board.KindRectangle, el.Kind)
	assert.Equal(t, 60.0, el.Data.EndX)
	require.Len(t, r.store.List(testRoom), 1)

	// b cannot delete what a drew
	del, err := collab.NewMessage(collab.TypeElementDelete, collab.DeletePayload{RoomID: testRoom, ElementID: el.ID})
	require.NoError(t, err)
	b.link.Send(del)
	settle(t, peers, func() bool { return b.engine.Status() == "You can only change your own elements" })
	assert.Len(t, r.store.List(testRoom), 1)

	a.engine.Undo()
	settle(t, peers, func() bool {
		return a.engine.Scene().Len() == 0 && b.engine.Scene().Len() == 0
	})
	assert.Empty(t, r.store.List(testRoom))
	assert.True(t, a.engine.CanRedo())

	a.engine.Redo()
	settle(t, peers, func() bool { return b.engine.Scene().Len() == 1 })
	assert.Equal(t, el.ID, b.engine.Scene().Elements()[0].ID)
}

func TestRelayLiveGoesToOthers(t *testing.T) {
	r := startRelay(t)
	a := r.join(t, "user_a", "Ada")
	b := r.join(t, "user_b", "Grace")
	peers := []*peer{a, b}
	settle(t, peers, func() bool { return a.engine.Joined() && b.engine.Joined() })
	idle(peers, 200*time.Millisecond)

	require.NoError(t, a.engine.SetTool(engine.ToolFreehand))
	a.engine.PointerDown(board.Point{X: 0, Y: 0})
	a.engine.PointerMove(board.Point{X: 5, Y: 5})

	settle(t, peers, func() bool { return b.engine.Scene().LiveCount() == 1 })
	_, overlays := b.engine.Scene().Visible("user_b")
	require.Len(t, overlays, 1)
	assert.Equal(t, "user_a", overlays[0].UserID)

	a.engine.PointerUp()
	settle(t, peers, func() bool {
		return b.engine.Scene().Len() == 1 && b.engine.Scene().LiveCount() == 0
	})
}

func TestRelayRequiresJoin(t *testing.T) {
	r := startRelay(t)
	a := r.join(t, "user_a", "Ada")
	a.engine.SetRoom("")
	settle(t, []*peer{a}, func() bool { return a.engine.Connected() })

	add, err := collab.NewMessage(collab.TypeElementAdd, collab.ElementPayload{Element: rect("el_1")})
	require.NoError(t, err)
	a.link.Send(add)
	settle(t, []*peer{a}, func() bool { return a.engine.Status() == "Join room first" })
	assert.Empty(t, r.store.List(testRoom))
}

func TestSnapshotEndpoint(t *testing.T) {
	r := startRelay(t)
	_, err := r.store.Add(testRoom, "user_a", rect("el_1"), t0)
	require.NoError(t, err)

	resp, err := http.Get(r.ts.URL + "/rooms/" + testRoom + "/board-elements")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := r.issuer.Issue("user_b", "Grace")
	require.NoError(t, err)
	link := collab.NewLink(r.wsURL(), r.ts.URL, collab.WithLogger(quietLogger()))
	elems, err := link.FetchSnapshot(context.Background(), testRoom, token)
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.Equal(t, "el_1", elems[0].ID)
	assert.Equal(t, "user_a", elems[0].Owner())
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	r := startRelay(t)

	for _, q := range []string{"", "?token=garbage"} {
		resp, err := http.Get(r.ts.URL + "/ws" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, q)
	}
}

func TestHealthAndDevToken(t *testing.T) {
	r := startRelay(t)

	resp, err := http.Get(r.ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(r.ts.URL+"/auth/dev-token", "application/json", strings.NewReader(`{"name":"Ada"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var res auth.TokenResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	_, err = r.issuer.Validate(res.Token)
	assert.NoError(t, err)
}

func TestCORSPreflight(t *testing.T) {
	r := startRelay(t)

	req, err := http.NewRequest(http.MethodOptions, r.ts.URL+"/auth/dev-token", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:5173", "https://draw.example.com", "*.example.org"})
	assert.Equal(t, []string{"localhost:5173", "draw.example.com", "*.example.org"}, got)
}

func TestClosedSocketLeavesRoom(t *testing.T) {
	r := startRelay(t)
	a := r.join(t, "user_a", "Ada")
	b := r.join(t, "user_b", "Grace")
	peers := []*peer{a, b}
	settle(t, peers, func() bool { return a.engine.Joined() && b.engine.Joined() })
	assert.Equal(t, 1, r.hub.RoomCount())

	a.link.Close()
	settle(t, []*peer{b}, func() bool {
		r.hub.mu.RLock()
		defer r.hub.mu.RUnlock()
		return len(r.hub.clients) == 1
	})
	assert.Equal(t, 1, r.hub.RoomCount())

	// the room keeps working for whoever is left
	require.NoError(t, b.engine.SetTool(engine.ToolRectangle))
	drawRect(b.engine)
	settle(t, []*peer{b}, func() bool { return b.engine.Scene().Len() == 1 })

	b.link.Close()
	settle(t, nil, func() bool { return r.hub.RoomCount() == 0 })
}
