// Package api is the thin REST facade over the pipeline: it triggers runs
// and reads events back. It holds no pipeline logic of its own.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lofi-pipeline/internal/config"
	"lofi-pipeline/internal/events"
	"lofi-pipeline/internal/pipeline"
)

// Server wires the HTTP routes.
type Server struct {
	cfg   *config.Config
	store *events.Store
	orch  *pipeline.Orchestrator
	log   zerolog.Logger

	running atomic.Bool
}

func NewServer(cfg *config.Config, store *events.Store, orch *pipeline.Orchestrator, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, store: store, orch: orch, log: log}
}

// Routes builds the router: health, pipeline trigger, event queries and
// the Prometheus scrape endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(httprate.Limit(
			s.cfg.Server.RateLimitPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		)).Post("/pipeline/run", s.handleRun)

		r.Get("/events", s.handleEvents)
		r.Get("/events/{id}", s.handleEvent)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":   "ok",
		"database": "ok",
	}
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleRun fires one pipeline run in the background. Only one run may be
// in flight at a time against a media root; overlapping triggers get 409.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.running.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "a pipeline run is already in progress",
		})
		return
	}

	go func() {
		defer s.running.Store(false)
		// Detached from the request context: the run outlives the
		// HTTP exchange that triggered it.
		if _, err := s.orch.RunOnce(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("pipeline run failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	evs, err := s.store.List(r.Context(), kind, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list events")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list events"})
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event id"})
		return
	}

	ev, err := s.store.Get(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get event")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not read event"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
