package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one authenticated connection. The browser only listens; anything
// it sends is discarded.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	send     chan []byte
	familyID int64
	userID   int64
}

func NewClient(hub *Hub, conn *ws.Conn, familyID, userID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		familyID: familyID,
		userID:   userID,
	}
}

// enqueue buffers data without blocking and reports whether it fit.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run joins the hub, greets the client and writes until the peer goes away
// or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead consumes and drops inbound frames; its context ends when the
	// peer closes the connection.
	ctx = c.conn.CloseRead(ctx)

	hello, _ := json.Marshal(NewMessage("session", "connected", c.userID, map[string]any{"family_id": c.familyID}))
	c.enqueue(hello)

	err := c.writeLoop(ctx)
	if err != nil && ws.CloseStatus(err) == -1 && ctx.Err() == nil {
		c.hub.logger.Debug("websocket write failed", "user_id", c.userID, "error", err)
	}
	c.conn.Close(ws.StatusNormalClosure, "")
}

func (c *Client) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return nil
			}
			if err := c.write(ctx, msg); err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, ws.MessageText, msg)
}
