package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes mounts the API, event stream and metrics routes.
func SetupRoutes(router chi.Router, h *Handlers) {
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/cubes", h.Cubes)
		r.Route("/cubes/{cube}", func(r chi.Router) {
			r.Get("/members", h.LevelMembers)
			r.Get("/children", h.Children)
			r.Get("/lookup", h.Lookup)
			r.Get("/lead", h.Lead)
			r.Get("/tuples", h.Tuples)
			r.Post("/predicate", h.Predicate)
		})
		r.Post("/flush", h.Flush)
		r.Post("/invalidate", h.Invalidate)
		r.Get("/changes", h.Changes)
		r.Get("/events", h.Events)
	})
}
