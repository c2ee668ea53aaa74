package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mosim.ai/internal/protocol"
)

// Client is a JSON-RPC 2.0 client over a single websocket connection. Call is
// safe for concurrent use.
type Client struct {
	url string
	log *log.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan clientResponse
	err     error

	closeOnce sync.Once
	done      chan struct{}
}

func Dial(ctx context.Context, url string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}
	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		url:     url,
		log:     logger,
		conn:    conn,
		pending: map[uint64]chan clientResponse{},
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) URL() string { return c.url }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readLoop() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		var resp clientResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			c.log.Printf("rpc %s: bad response: %v", c.url, err)
			continue
		}
		id, err := strconv.ParseUint(string(resp.ID), 10, 64)
		if err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		for id, ch := range c.pending {
			delete(c.pending, id)
			close(ch)
		}
		c.mu.Unlock()
		_ = c.conn.Close()
		close(c.done)
	})
}

// Call sends method with params and decodes the result into result (if non-nil).
// A cancelled ctx abandons the call; the late response is dropped.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("%s: encode params: %w", method, err)
		}
		raw = b
	}

	ch := make(chan clientResponse, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return Errorf(protocol.ErrClosed, "%v", c.err)
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: json.RawMessage(strconv.FormatUint(id, 10)), Method: method, Params: raw}
	b, err := json.Marshal(req)
	if err != nil {
		c.forget(id)
		return err
	}
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = c.conn.WriteMessage(websocket.TextMessage, b)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		c.shutdown(err)
		return Errorf(protocol.ErrClosed, "%v", err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return Errorf(protocol.ErrClosed, "%s: connection closed", method)
		}
		if resp.Error != nil {
			code := protocol.ErrInternal
			if resp.Error.Data != nil && resp.Error.Data.Code != "" {
				code = resp.Error.Data.Code
			}
			return &Error{Code: code, Message: resp.Error.Message}
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.shutdown(errors.New("client closed"))
	return nil
}
