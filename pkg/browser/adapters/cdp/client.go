package cdp

import (
	"context"
	"encoding/json"
	"sync"

	"nhooyr.io/websocket"

	"github.com/odvcencio/pagecast/pkg/browser"
)

// screenshots arrive base64-encoded inside a single JSON message
const maxCDPReadBytes = 64 << 20

type rpcRequest struct {
	ID        int64  `json:"id"`
	SessionID string `json:"sessionId,omitempty"`
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// client is a minimal DevTools JSON-RPC client over one websocket
// connection. Protocol events are discarded; only command responses are
// routed back to callers.
type client struct {
	conn *websocket.Conn

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan rpcResponse

	closed    chan struct{}
	closeOnce sync.Once
}

// dialClient connects to a DevTools endpoint and starts the response router.
func dialClient(ctx context.Context, wsURL string) (*client, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, browser.WrapCDPError("dial_failed", "connecting to devtools", err)
	}
	conn.SetReadLimit(maxCDPReadBytes)

	c := &client{
		conn:    conn,
		pending: make(map[int64]chan rpcResponse),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *client) readLoop() {
	defer c.failPending()
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.ID == 0 {
			continue // protocol event, not a command response
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *client) failPending() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// call issues one command and decodes its result. sessionID may be empty for
// browser-level commands.
func (c *client) call(ctx context.Context, sessionID, method string, params, result any) error {
	if c == nil {
		return browser.ErrUnavailable
	}
	select {
	case <-c.closed:
		return browser.ErrConnectionLost
	default:
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := json.Marshal(rpcRequest{ID: id, SessionID: sessionID, Method: method, Params: params})
	if err != nil {
		c.dropPending(id)
		return browser.WrapCDPError("marshal", method, err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.dropPending(id)
		return browser.WrapCDPError("write", method, err)
	}

	select {
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	case <-c.closed:
		return browser.ErrConnectionLost
	case resp := <-ch:
		if resp.Error != nil {
			return browser.NewCDPError("command_failed", method+": "+resp.Error.Message)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return browser.WrapCDPError("decode", method, err)
			}
		}
		return nil
	}
}

func (c *client) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *client) close() error {
	if c == nil {
		return nil
	}
	c.failPending()
	return c.conn.Close(websocket.StatusNormalClosure, "shutting down")
}
