package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fabulani/shopfloor-simulation/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/manager", func(r chi.Router) {
			r.Get("/", s.handleGetManager)
			r.Post("/", s.handleSetManager)
		})

		r.Route("/logging", func(r chi.Router) {
			r.Get("/", s.handleGetLogging)
			r.Put("/", s.handleSetLogging)
		})

		r.Get("/control-events", s.handleListControlEvents)
		r.Get("/ws", s.handleWebSocket)
	})

	r.Handle("/*", panel.Handler(s.deps.Config.PanelDir))

	return r
}
