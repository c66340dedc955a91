// Package rest exposes the HTTP surface of the server: the WebSocket endpoint,
// room records, health and metrics.
package rest

import (
	"log/slog"
	"net/http"

	"room-chat/contract"
	"room-chat/observability"
	"room-chat/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Router struct {
	log      *slog.Logger
	verifier contract.IVerifier
	rooms    services.IRoomService
	ws       http.Handler
	metrics  *observability.Metrics
	origins  []string
}

func NewRouter(log *slog.Logger, verifier contract.IVerifier, rooms services.IRoomService,
	ws http.Handler, metrics *observability.Metrics, origins []string) *Router {
	return &Router{log: log, verifier: verifier, rooms: rooms, ws: ws, metrics: metrics, origins: origins}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)

	// The upgrade must not go through CORS nor any response wrapper
	router.Handle("/ws", rt.ws)

	router.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
		r.Use(requestLogger(rt.log))

		r.Get("/healthz", rt.healthCheck)
		r.Handle("/metrics", rt.metrics.Handler())

		r.Route("/rooms", func(r chi.Router) {
			handler := NewRoomHandler(rt.rooms, rt.log)
			r.Get("/{roomID}", handler.GetRoom)
			r.Get("/{roomID}/messages", handler.History)
			r.With(authenticate(rt.verifier)).Post("/", handler.CreateRoom)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
