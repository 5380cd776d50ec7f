package stream

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const clientSendBuffer = 16

// Conn is the subset of a websocket connection the registry needs. Tests
// substitute fakes.
type Conn interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
	Close(status websocket.StatusCode, reason string) error
}

// Client is one connected viewer. Outbound payloads are enqueued on a
// buffered channel drained by WriteLoop; a full buffer marks the client as a
// failed send.
type Client struct {
	ID   string
	conn Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient wraps a connection for registry membership.
func NewClient(id string, conn Conn) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
}

// enqueue attempts a non-blocking send. It reports false when the client's
// buffer is full, which the broadcaster treats as a delivery failure. A
// broadcast working from an older registry snapshot may race a removal, so
// the buffer is guarded against enqueue-after-close.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend shuts the send buffer exactly once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Send enqueues an out-of-band payload (connect-time meta). Same non-blocking
// semantics as broadcast delivery.
func (c *Client) Send(payload []byte) bool {
	return c.enqueue(payload)
}

// WriteLoop drains the send buffer onto the connection until the buffer is
// closed or a write fails.
func (c *Client) WriteLoop(ctx context.Context) error {
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CloseConn closes the underlying connection.
func (c *Client) CloseConn(status websocket.StatusCode, reason string) {
	_ = c.conn.Close(status, reason)
}

// Registry is the synchronized set of connected viewers. All operations are
// safe under concurrent callers: the capture scheduler, connection accept
// handlers, and the event pipeline.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]struct{})}
}

// Add inserts a client. Adding a member twice is a no-op.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; ok {
		return
	}
	r.clients[c] = struct{}{}
	metricClientsConnected.Set(float64(len(r.clients)))
}

// Remove deletes a client if present and closes its send buffer exactly
// once. Removing an absent client is a no-op.
func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	c.closeSend()
	metricClientsConnected.Set(float64(len(r.clients)))
}

// Snapshot returns a point-in-time copy of the membership, safe to iterate
// while adds and removes happen elsewhere.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Len reports the current number of connected viewers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
