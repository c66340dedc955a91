// Package ws carries the chat protocol over gorilla WebSocket connections.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"room-chat/contract"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// CommandHandler receives inbound frames and transport closures.
type CommandHandler interface {
	Handle(ctx context.Context, sink contract.EventSink, raw []byte)
	Disconnect(sink contract.EventSink)
}

type Config struct {
	ConnectionBufferSize int
	MaxFrameSize         int64
	WriteTimeout         time.Duration
	PongTimeout          time.Duration
	AllowedOrigins       []string
}

type Handler struct {
	ctx      context.Context
	log      *slog.Logger
	service  CommandHandler
	config   Config
	upgrader websocket.Upgrader
}

// NewHandler serves WebSocket upgrades. Commands inherit ctx, so cancelling it
// aborts in-flight commands on shutdown.
func NewHandler(ctx context.Context, log *slog.Logger, service CommandHandler, config Config) *Handler {
	h := &Handler{ctx: ctx, log: log, service: service, config: config}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.log.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, h.config.ConnectionBufferSize, h.log)
	client.log.Debug("Connection opened", "remote", r.RemoteAddr)
	pumps := pumpConfig{
		maxFrameSize: h.config.MaxFrameSize,
		writeTimeout: h.config.WriteTimeout,
		pongTimeout:  h.config.PongTimeout,
	}

	go client.writePump(pumps)
	go func() {
		select {
		case <-h.ctx.Done():
			_ = client.Close()
		case <-client.Done():
		}
	}()
	go func() {
		defer func() {
			h.service.Disconnect(client)
			_ = client.Close()
			client.log.Debug("Connection closed")
		}()
		client.readPump(h.ctx, pumps, func(ctx context.Context, raw []byte) {
			h.service.Handle(ctx, client, raw)
		})
	}()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || lo.Contains(h.config.AllowedOrigins, "*") {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	allowed := lo.Contains(h.config.AllowedOrigins, origin) || lo.Contains(h.config.AllowedOrigins, parsed.Host)
	if !allowed {
		h.log.Warn("Origin rejected", "origin", origin)
	}
	return allowed
}
