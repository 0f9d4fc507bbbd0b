package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/objectstore"
)

// handleStorageHead reports object metadata. Failures are reported in the body with
// ok=false so the endpoint doubles as a storage connectivity check.
func (s *Server) handleStorageHead(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("object_key"))
	if key == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "object_key is required")
		return
	}
	body := map[string]any{
		"bucket":   s.deps.Objects.Bucket(),
		"endpoint": s.deps.Objects.Endpoint(),
	}
	info, err := s.deps.Objects.Head(r.Context(), key)
	if err != nil {
		body["ok"] = false
		body["error"] = err.Error()
		respondJSON(w, http.StatusOK, body)
		return
	}
	body["ok"] = true
	body["bytes"] = info.Size
	body["content_type"] = info.ContentType
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleStorageStream(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("object_key"))
	if key == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "object_key is required")
		return
	}
	rc, info, err := s.deps.Objects.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "object_not_found", "Object not found in storage: "+key)
			return
		}
		respondError(w, http.StatusBadGateway, "storage_failed", err.Error())
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromCtx(r.Context()).Warn().Err(err).Str("object_key", key).Msg("stream object interrupted")
	}
}
