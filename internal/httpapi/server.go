// Package httpapi exposes the command pipeline over HTTP.
//
// Routes:
//
//	POST /api/v1/commands                          interpret one transcript
//	POST /api/v1/commands/{id}/correction          flag a handled command as corrected
//	POST /api/v1/workouts/end                      close a workout session
//	GET  /api/v1/sessions/{user}/{workout}         inspect a session snapshot
//	GET  /healthz, /readyz                         liveness and readiness
//	GET  /metrics                                  Prometheus scrape endpoint
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zchasse63/voice-fit-sub008/internal/health"
	"github.com/Zchasse63/voice-fit-sub008/internal/observe"
	"github.com/Zchasse63/voice-fit-sub008/internal/pipeline"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	pipe   *pipeline.Pipeline
	health *health.Handler
	log    *slog.Logger
	router chi.Router
}

// New creates a Server with all routes configured. metrics may be nil to skip
// the request-duration middleware; log defaults to slog.Default().
func New(pipe *pipeline.Pipeline, h *health.Handler, metrics *observe.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		pipe:   pipe,
		health: h,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes(metrics)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(metrics *observe.Metrics) {
	if metrics != nil {
		s.router.Use(observe.Middleware(metrics))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/commands", s.handleCommand)
		r.Post("/commands/{id}/correction", s.handleCorrection)
		r.Post("/workouts/end", s.handleEndWorkout)
		r.Get("/sessions/{user}/{workout}", s.handleGetSession)
	})

	if s.health != nil {
		s.router.Get("/healthz", s.health.Healthz)
		s.router.Get("/readyz", s.health.Readyz)
	}
	s.router.Handle("/metrics", promhttp.Handler())
}
