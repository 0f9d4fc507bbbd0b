// Package httpapi exposes uploads, memory browsing, job control and grounded
// question answering over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/KhushM7/UncTube/internal/config"
	"github.com/KhushM7/UncTube/internal/jobs"
	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/objectstore"
	"github.com/KhushM7/UncTube/internal/observability"
	"github.com/KhushM7/UncTube/internal/retrieval"
	"github.com/KhushM7/UncTube/internal/voice"
)

// WorkerControl is the operational surface of the extraction worker.
type WorkerControl interface {
	Start(ctx context.Context) bool
	Stop(ctx context.Context) error
	Status() jobs.Status
}

// Answerer answers a question from a profile's memories.
type Answerer interface {
	Ask(ctx context.Context, profileID, question string) (retrieval.Result, error)
}

type Deps struct {
	Store   memory.Store
	Objects objectstore.Store
	Engine  Answerer
	Worker  WorkerControl
	Voice   voice.Provider
	Metrics *observability.Metrics
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg     config.Config
	deps    Deps
	baseCtx context.Context
	now     func() time.Time
	newID   func() string
}

// New builds a server. baseCtx outlives requests and is used for background work
// started over HTTP, such as the worker loop.
func New(baseCtx context.Context, cfg config.Config, deps Deps) *Server {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.S3.PresignTTL <= 0 {
		cfg.S3.PresignTTL = time.Hour
	}
	return &Server{
		cfg:     cfg,
		deps:    deps,
		baseCtx: baseCtx,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   newObjectID,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route(s.cfg.APIPrefix, func(r chi.Router) {
		r.Post("/profiles", s.handleCreateProfile)
		r.Get("/profiles/{profileID}", s.handleGetProfile)
		r.Get("/profiles/{profileID}/media-assets", s.handleListMediaAssets)
		r.Get("/profiles/{profileID}/jobs", s.handleListJobs)
		r.Post("/profiles/{profileID}/ask", s.handleAsk)
		r.Post("/profiles/{profileID}/ask-voice", s.handleAskVoice)
		r.Post("/profiles/voice-clone", s.handleVoiceClone)

		r.Post("/media-assets/upload-init", s.handleUploadInit)
		r.Post("/media-assets/upload-confirm", s.handleUploadConfirm)
		r.Get("/media-assets/{assetID}/memory-units", s.handleListMemoryUnits)
		r.Patch("/media-assets/{assetID}/memory-units", s.handlePatchMemoryUnits)

		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Get("/worker/status", s.handleWorkerStatus)
		r.Post("/worker/start", s.handleWorkerStart)
		r.Post("/worker/stop", s.handleWorkerStop)

		r.Get("/voices", s.handleListVoices)
		r.Get("/storage/head", s.handleStorageHead)
		r.Get("/storage/stream", s.handleStorageStream)
		r.Get("/perf/latency", s.handlePerfLatency)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"worker_running": s.deps.Worker != nil && s.deps.Worker.Status().Running,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gatherer != nil {
		observability.HandlerFor(s.deps.Gatherer).ServeHTTP(w, r)
		return
	}
	observability.MetricsHandler().ServeHTTP(w, r)
}

// accessLog attaches a request-scoped logger carrying the request id, logs one line
// per request and counts it by route pattern.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := logging.FromCtx(s.baseCtx).With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.deps.Metrics.ObserveHTTP(route, status)

		ev := logger.Info()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		} else if route == "/healthz" || route == "/metrics" {
			ev = logger.Debug()
		}
		ev.Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.FromCtx(r.Context()).Error().Interface("panic", rec).Msg("handler panicked")
				respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondStoreError maps record-store errors onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, memory.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", notFound)
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "canceled", err.Error())
	default:
		logging.FromCtx(r.Context()).Error().Err(err).Msg("record store request failed")
		respondError(w, http.StatusBadGateway, "store_failed", err.Error())
	}
}
