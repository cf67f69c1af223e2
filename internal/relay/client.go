package relay

import (
	"context"
	"log/slog"

	"github.com/coder/websocket"

	"github.com/drawroom/drawroom/canvas-go/internal/collab"
)

// Client is one accepted socket. The framing and keepalive are the same
// pumps the engine's link uses; the relay adds identity and membership.
type Client struct {
	*collab.Client

	hub      *Hub
	UserID   string
	Name     string
	ClientID string

	roomID string // guarded by hub.mu
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, name, clientID string) *Client {
	logger := slog.Default().With("user", userID, "client", clientID)
	return &Client{
		Client:   collab.NewClient(conn, logger),
		hub:      hub,
		UserID:   userID,
		Name:     name,
		ClientID: clientID,
	}
}

// Serve feeds frames to the hub until the socket or ctx ends, then
// unregisters the client. The writer stops with it.
func (c *Client) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.WritePump(ctx)
	err := c.ReadPump(ctx, func(msg *collab.Message) {
		c.hub.handleMessage(c, msg)
	})
	if err != nil {
		slog.Debug("read error", "error", err, "user", c.UserID)
	}

	c.hub.Unregister(c)
	c.Close()
}
