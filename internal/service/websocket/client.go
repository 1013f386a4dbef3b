package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"firewatch/internal/model"
)

const (
	defaultWriteWait = 10 * time.Second
	closeWait        = time.Second
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one browser connection subscribed to status events.
// Writes are serialized; gorilla connections allow a single writer.
type Client struct {
	id   string
	conn *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{id: "ws-" + uuid.NewString(), conn: conn}
}

func (c *Client) ID() string { return c.id }

// Send writes ev as JSON, bounded by the ctx deadline.
func (c *Client) Send(ctx context.Context, ev model.StatusEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(ctx, ev)
}

func (c *Client) write(ctx context.Context, ev model.StatusEvent) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteWait)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(ev)
}

// SendAll writes events in order, stopping at the first error.
func (c *Client) SendAll(ctx context.Context, events []model.StatusEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeAll(ctx, events)
}

// SendSnapshot loads and writes an initial state while holding the write
// lock, so concurrent Sends are delivered after it.
func (c *Client) SendSnapshot(ctx context.Context, load func(context.Context) ([]model.StatusEvent, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	events, err := load(ctx)
	if err != nil {
		return err
	}
	return c.writeAll(ctx, events)
}

func (c *Client) writeAll(ctx context.Context, events []model.StatusEvent) error {
	for _, ev := range events {
		if err := c.write(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Close sends a close frame and closes the connection. Safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// ReadUntilClosed discards incoming messages until the peer disconnects.
func (c *Client) ReadUntilClosed() error {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
	}
}
