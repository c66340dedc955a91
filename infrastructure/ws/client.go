package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"room-chat/domain/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrSinkClosed = fmt.Errorf("connection closed")
	ErrSinkFull   = fmt.Errorf("connection send buffer full")
)

// Client is one live WebSocket connection. It implements contract.EventSink:
// Consume only enqueues, a single writer goroutine owns the socket writes.
type Client struct {
	ID   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func NewClient(conn *websocket.Conn, bufferSize int, log *slog.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
		log:  log.With("connection_id", id),
	}
}

// Consume serializes e and queues it without blocking.
// A full queue closes the client.
func (c *Client) Consume(_ context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	select {
	case <-c.done:
		return ErrSinkClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrSinkClosed
	default:
		// A peer that cannot keep up would silently miss events: drop it, it
		// gets the history replayed when it joins again.
		c.log.Warn("Send buffer full, closing connection", "event", e.Name())
		_ = c.Close()
		return ErrSinkFull
	}
}

// Close stops the writer, which closes the socket. Safe to call many times.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

type pumpConfig struct {
	maxFrameSize int64
	writeTimeout time.Duration
	pongTimeout  time.Duration
}

// readPump hands every text frame to handle until the socket fails.
func (c *Client) readPump(ctx context.Context, config pumpConfig, handle func(ctx context.Context, raw []byte)) {
	c.conn.SetReadLimit(config.maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(config.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(config.pongTimeout))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warn("Unexpected close", "error", err)
			} else {
				c.log.Debug("Read loop ended", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handle(ctx, raw)
	}
}

// writePump drains the send queue and pings the peer. It is the only writer.
func (c *Client) writePump(config pumpConfig) {
	ticker := time.NewTicker(config.pongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(config.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed", "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(config.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			c.flush(config)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(config.writeTimeout))
			return
		}
	}
}

// flush writes what was queued before the close, best-effort.
func (c *Client) flush(config pumpConfig) {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(config.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}
