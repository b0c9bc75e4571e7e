// Package server exposes the chat service over HTTP: JSON endpoints for the
// catalog and session CRUD, and an SSE endpoint for the message stream.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/kaiwa-app/kaiwa/internal/auth"
	"github.com/kaiwa-app/kaiwa/internal/chat"
	"github.com/kaiwa-app/kaiwa/internal/logging"
	"github.com/kaiwa-app/kaiwa/internal/version"
)

// NewRouter assembles the full route tree. Everything under /api sits behind
// the bearer-token middleware.
func NewRouter(database *gorm.DB, svc *chat.Service, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.RequestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(database, jwtSecret))

		r.Get("/plans", PlansHandler(svc))

		r.Route("/chat", func(r chi.Router) {
			r.Get("/models", ModelsHandler(svc))
			r.Get("/sessions", SessionsHandler(svc))
			r.Post("/sessions", CreateSessionHandler(svc))
			r.Delete("/sessions/{sessionID}", DeleteSessionHandler(svc))
			r.Get("/sessions/{sessionID}/messages", MessagesHandler(svc))
			r.Post("/sessions/{sessionID}/messages", StreamMessageHandler(svc))
		})
	})

	return r
}
