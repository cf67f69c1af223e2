package collab

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

func quietLink(apiBase string) *Link {
	return NewLink("ws://127.0.0.1:1/ws", apiBase, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(TypeElementDelete, DeletePayload{RoomID: "r", ElementID: "el_1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"roomId":"r","elementId":"el_1"}`, string(msg.Payload))

	var p DeletePayload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, "el_1", p.ElementID)

	empty := &Message{Type: TypeError}
	assert.Error(t, empty.Decode(&p))

	bad := &Message{Type: TypeError, Payload: []byte(`"nope"`)}
	assert.Error(t, bad.Decode(&ErrorPayload{}))
}

func TestRoster(t *testing.T) {
	r := NewRoster()
	r.Merge([]OnlineUser{{UserID: "user_a", Name: "Ada"}, {UserID: "user_b", Name: ""}})
	r.Set("", "Nobody")
	r.Set("user_c", "Grace")

	name, ok := r.Name("user_a")
	assert.True(t, ok)
	assert.Equal(t, "Ada", name)
	_, ok = r.Name("user_b")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestFetchSnapshot(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/rooms/room1/board-elements", r.URL.Path)
		w.Write([]byte(`{"elements":[
			{"elementId":"el_1","type":"rectangle","data":{"startX":1,"endX":2},"userId":"user_a"},
			{"elementId":"el_2","type":"hexagon","data":{}},
			{"elementId":"","type":"line","data":{}},
			{"elementId":"el_3","type":"text","data":{"text":"hi"}}
		]}`))
	}))
	defer srv.Close()

	elems, err := quietLink(srv.URL+"/").FetchSnapshot(context.Background(), "room1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
	require.Len(t, elems, 2)
	assert.Equal(t, "el_1", elems[0].ID)
	assert.Equal(t, board.KindRectangle, elems[0].Kind)
	assert.Equal(t, "el_3", elems[1].ID)
}

func TestFetchSnapshotStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := quietLink(srv.URL).FetchSnapshot(context.Background(), "room1", "tok")
	assert.ErrorIs(t, err, ErrSnapshotStatus)
}

func TestRequestSnapshotEmitsEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements":[{"elementId":"el_1","type":"line","data":{}}]}`))
	}))
	defer srv.Close()

	l := quietLink(srv.URL)
	l.RequestSnapshot("room1")

	select {
	case ev := <-l.Events():
		assert.Equal(t, EventSnapshot, ev.Kind)
		assert.Equal(t, "room1", ev.RoomID)
		require.Len(t, ev.Elements, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot event")
	}
}

func TestSendWithoutConnection(t *testing.T) {
	l := quietLink("http://127.0.0.1:1")
	msg, err := NewMessage(TypeRoomJoin, RoomJoinPayload{RoomID: "r"})
	require.NoError(t, err)

	assert.NotPanics(t, func() { l.Send(msg) })
	assert.Empty(t, l.Events())
}

func TestConnectFailureEmitsClose(t *testing.T) {
	l := quietLink("http://127.0.0.1:1")
	l.Connect(context.Background(), "tok")

	select {
	case ev := <-l.Events():
		assert.Equal(t, EventClose, ev.Kind)
		assert.Error(t, ev.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("no close event")
	}
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "snapshot", EventSnapshot.String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
}
