package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KhushM7/UncTube/internal/memory"
)

type createProfileRequest struct {
	ProfileID   string `json:"profile_id"`
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	VoiceID     string `json:"voice_id"`
}

// handleCreateProfile returns the existing profile when the name is already taken,
// filling in its voice id if it had none.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ctx := r.Context()
	name := strings.TrimSpace(req.Name)
	voiceID := strings.TrimSpace(req.VoiceID)

	if name != "" {
		existing, err := s.deps.Store.FindProfileByName(ctx, name)
		switch {
		case err == nil:
			if voiceID != "" && existing.VoiceID == "" {
				if updated, err := s.deps.Store.UpdateProfileVoice(ctx, existing.ID, voiceID); err == nil {
					existing = updated
				}
			}
			respondJSON(w, http.StatusOK, existing)
			return
		case !errors.Is(err, memory.ErrNotFound):
			respondStoreError(w, r, err, "")
			return
		}
	}

	p := memory.Profile{ID: strings.TrimSpace(req.ProfileID), Name: name, VoiceID: voiceID}
	if dob := strings.TrimSpace(req.DateOfBirth); dob != "" {
		t, err := time.Parse(time.DateOnly, dob)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_date_of_birth", "date_of_birth must be YYYY-MM-DD")
			return
		}
		p.DateOfBirth = &t
	}
	created, err := s.deps.Store.CreateProfile(ctx, p)
	if err != nil {
		respondStoreError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, created)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Store.GetProfile(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		respondStoreError(w, r, err, "Profile not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}
