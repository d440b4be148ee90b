// Package http assembles the chi router for the relay server.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roomcast/roomcast/internal/handlers"
)

// NewRouter wires the websocket endpoint, the room directory, health
// and metrics.
func NewRouter(ws *handlers.WebSocketHandler, rooms *handlers.RoomHandler, metricsHandler http.Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/api/v1/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/api/v1/rooms", rooms.List)
	r.Get("/api/v1/rooms/{room}/users", rooms.Users)
	r.Handle("/metrics", metricsHandler)
	r.Get("/ws", ws.HandleWebSocket)

	return r
}
