//go:build js

package collab

import "context"

// The browser WebSocket API answers pings itself and cannot send them.
func (c *Client) ping(ctx context.Context) error {
	return ctx.Err()
}
