package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Init builds the router: panic recovery and request logging wrap everything,
// the sync API group additionally requires a verified bearer token.
func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(h.TraceIDMiddleware)
	router.Use(h.LoggingMiddleware)

	router.Route("/api/sync", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/", h.Sync)
		r.Post("/resolve-conflict", h.ResolveConflict)
		r.Get("/records", h.ListRecords)
		r.Get("/last-sync-time", h.LastSyncTime)
	})

	return router
}
