package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrQueueFull indicates the client's send queue had no room for a frame.
	ErrQueueFull = errors.New("ws: send queue full")
	// ErrClosed indicates the client connection is gone.
	ErrClosed = errors.New("ws: client closed")
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client represents a websocket client connection with a bounded send queue
// drained by its own write pump.
type Client struct {
	conn   *websocket.Conn
	log    *slog.Logger
	send   chan []byte
	mu     sync.Mutex
	closed bool
	once   sync.Once
	done   chan struct{}
}

// NewClient constructs a client wrapper and starts its write pump.
func NewClient(conn *websocket.Conn, queue int, logger *slog.Logger) *Client {
	if queue <= 0 {
		queue = 64
	}
	c := &Client{conn: conn, log: logger, send: make(chan []byte, queue), done: make(chan struct{})}
	go c.writePump()
	return c
}

// Send queues payload without blocking.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the write pump; the connection is closed once the pump has
// flushed a close frame.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		go func() {
			<-c.done
			_ = c.conn.Close()
		}()
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("websocket send failed", "error", err)
				c.drain()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drain()
				return
			}
		}
	}
}

// drain marks the client closed after a write failure so the hub drops it.
func (c *Client) drain() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	_ = c.conn.Close()
}
