package main

import (
	"context"
	"log/slog"
	"net/http"

	"room-chat/auth"
	"room-chat/infrastructure/rest"
	"room-chat/infrastructure/storage"
	"room-chat/infrastructure/ws"
	"room-chat/internal"
	"room-chat/observability"
	"room-chat/runtime"
	"room-chat/runtime/workers"
	"room-chat/services"

	"github.com/dgraph-io/badger/v4"
)

// app is the fully wired server, without the listener.
type app struct {
	handler      http.Handler
	orchestrator *runtime.Orchestrator
	heartbeat    *workers.HeartbeatWorker
	rooms        *storage.RoomRepository
}

// newApp builds every component on top of db. Transports are closed when ctx is done.
func newApp(ctx context.Context, config internal.Config, db *badger.DB, log *slog.Logger) *app {
	metrics := observability.NewMetrics()

	breaker := storage.DefaultBreakerConfig("messages")
	breaker.MaxRequests = config.BreakerMaxRequests
	breaker.Interval = config.BreakerInterval
	breaker.Timeout = config.BreakerTimeout
	breaker.FailureThreshold = config.BreakerFailureThreshold
	breaker.MinRequests = config.BreakerMinRequests
	messages := storage.NewBreakerMessageStore(storage.NewMessageRepository(db, log), breaker, log)
	rooms := storage.NewRoomRepository(db, log)

	sup := workers.NewSupervisor(log, metrics, config.RestartInterval)
	registry := runtime.NewRegistry(log, metrics, config.CloseStaleTransport)
	orchestrator := runtime.NewOrchestrator(log, sup, registry, messages, runtime.OrchestratorConfig{
		RoomBufferSize: config.RoomBufferSize,
		HistoryLimit:   config.HistoryLimit,
		EchoSender:     config.EchoToSender,
	})
	verifier := auth.NewVerifier([]byte(config.JWTSecret))

	chat := services.NewChatService(orchestrator, verifier, rooms, metrics, log, services.ChatServiceConfig{
		CommandTimeout:   config.CommandTimeout,
		MaxContentLength: config.MaxContentLength,
	})
	roomService := services.NewRoomService(rooms, messages, registry, config.HistoryLimit)

	handler := ws.NewHandler(ctx, log, chat, ws.Config{
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxFrameSize:         config.MaxFrameSize,
		WriteTimeout:         config.WriteTimeout,
		PongTimeout:          config.PongTimeout,
		AllowedOrigins:       config.Origins(),
	})
	router := rest.NewRouter(log, verifier, roomService, handler, metrics, config.Origins())

	return &app{
		handler:      router.Setup(),
		orchestrator: orchestrator,
		heartbeat:    workers.NewHeartbeatWorker(log, metrics, workers.NewStatsSource(orchestrator), config.MetricInterval),
		rooms:        rooms,
	}
}

// start runs the room workers and the heartbeat until ctx is done.
func (a *app) start(ctx context.Context, log *slog.Logger) {
	go func() {
		if err := a.orchestrator.Start(ctx, a.heartbeat); err != nil {
			log.Error("Orchestrator stopped", "error", err)
		}
	}()
}
