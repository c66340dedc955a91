// Package client is a reconnecting WebSocket client for the chat server.
package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/samber/lo"
)

var (
	ErrNotConnected       = fmt.Errorf("not connected")
	ErrReconnectExhausted = fmt.Errorf("reconnection attempts exhausted")
)

type Client struct {
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	rooms map[string]struct{}
}

func New(cfg Config, log *slog.Logger) *Client {
	return &Client{cfg: cfg, log: log, rooms: make(map[string]struct{})}
}

// Run connects and reads frames into handle until ctx is done. A lost
// connection is retried with the configured backoff, and every joined room is
// joined again on the new connection. The retry budget is restored once a new
// connection delivers a frame. Run gives up with ErrReconnectExhausted.
func (c *Client) Run(ctx context.Context, handle func(Outbound)) error {
	attempt := 0
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			c.setConn(conn)
			if err = c.rejoin(ctx); err == nil {
				// Only a connection that delivered something counts as recovered,
				// a server that accepts then drops still uses up the budget
				err = c.readLoop(ctx, conn, func(out Outbound) {
					attempt = 0
					handle(out)
				})
			}
			c.setConn(nil)
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
		if ctx.Err() != nil {
			return nil
		}
		if c.cfg.Backoff.Exhausted(attempt) {
			return fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, attempt, err)
		}

		delay := c.cfg.Backoff.Delay(attempt)
		attempt++
		c.log.Warn("Connection lost, retrying", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// Join remembers room and joins it now when connected, or on the next connection.
func (c *Client) Join(ctx context.Context, room string) error {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()

	err := c.write(ctx, c.inbound("join", room, ""))
	if stderrors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

func (c *Client) Leave(ctx context.Context, room string) error {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
	return c.write(ctx, c.inbound("leave", room, ""))
}

func (c *Client) Send(ctx context.Context, room, content string) error {
	return c.write(ctx, c.inbound("message", room, content))
}

// Rooms lists the rooms rejoined after a reconnection.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Keys(c.rooms)
}

func (c *Client) inbound(command, room, content string) Inbound {
	return Inbound{
		Command:     command,
		Token:       c.cfg.Token,
		RoomID:      room,
		Content:     content,
		DisplayName: c.cfg.DisplayName,
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	c.log.Info("Connected", "url", c.cfg.URL)
	return conn, nil
}

func (c *Client) rejoin(ctx context.Context) error {
	for _, room := range c.Rooms() {
		if err := c.write(ctx, c.inbound("join", room, "")); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, handle func(Outbound)) error {
	for {
		var out Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if isExpectedDisconnect(ctx, err) {
				return io.EOF
			}
			return err
		}
		handle(out)
	}
}

func (c *Client) write(ctx context.Context, in Inbound) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if c.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, in)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
