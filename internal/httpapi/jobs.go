package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Store.ListJobs(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		respondStoreError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "Job not found")
		return
	}
	job, err := s.deps.Store.GetJob(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err, "Job not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleWorkerStatus(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Worker == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "worker not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Worker.Status())
}

func (s *Server) handleWorkerStart(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Worker == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "worker not configured")
		return
	}
	started := s.deps.Worker.Start(s.baseCtx)
	respondJSON(w, http.StatusOK, map[string]any{
		"started": started,
		"status":  s.deps.Worker.Status(),
	})
}

func (s *Server) handleWorkerStop(w http.ResponseWriter, r *http.Request) {
	if s.deps.Worker == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "worker not configured")
		return
	}
	// The loop finishes its current job before stopping; don't let the client hang on it forever.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := s.deps.Worker.Stop(ctx); err != nil {
		respondError(w, http.StatusGatewayTimeout, "stop_timeout", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stopped": true, "status": s.deps.Worker.Status()})
}
