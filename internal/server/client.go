package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection and its outbound queue.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	// Peer is the remote host, used to throttle logins.
	Peer string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lastHBAt time.Time
	closed   bool
}

func newClient(id, peer string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{ID: id, Peer: peer, Conn: conn, Send: make(chan []byte, 64), ctx: ctx, cancel: cancel, lastHBAt: time.Now()}
}

func (c *Client) SafeWrite(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastHBAt = time.Now()
	c.mu.Unlock()
}

func (c *Client) sinceHeartbeat() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastHBAt)
}

// close shuts the connection once and reports whether this call did it.
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.cancel()
	_ = c.Conn.Close()
	return true
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.ctx.Done() }
