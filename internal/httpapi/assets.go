package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KhushM7/UncTube/internal/memory"
)

func (s *Server) handleListMediaAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.deps.Store.ListMediaAssets(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		respondStoreError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, assets)
}

func (s *Server) handleListMemoryUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.deps.Store.ListMemoryUnits(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		respondStoreError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, units)
}

// handlePatchMemoryUnits applies the same edit to every unit of an asset. Only keys
// present in the body are changed.
func (s *Server) handlePatchMemoryUnits(w http.ResponseWriter, r *http.Request) {
	var patch memory.MemoryUnitPatch
	if err := decodeJSON(r, &patch); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if patch.Empty() {
		respondError(w, http.StatusBadRequest, "empty_patch", "No fields provided for update")
		return
	}
	units, err := s.deps.Store.UpdateMemoryUnits(r.Context(), chi.URLParam(r, "assetID"), patch)
	if err != nil {
		if errors.Is(err, memory.ErrEmptyPatch) {
			respondError(w, http.StatusBadRequest, "empty_patch", "No fields provided for update")
			return
		}
		respondStoreError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, units)
}
