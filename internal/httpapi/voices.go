package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/voice"
)

const maxCloneBytes = 50 << 20

type listVoicesResponse struct {
	DefaultVoiceID string            `json:"default_voice_id"`
	Voices         []voice.VoiceInfo `json:"voices"`
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	if s.deps.Voice == nil {
		respondJSON(w, http.StatusOK, listVoicesResponse{DefaultVoiceID: s.cfg.ElevenLabs.VoiceID, Voices: []voice.VoiceInfo{}})
		return
	}
	voices, err := s.deps.Voice.ListVoices(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "elevenlabs_request_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, listVoicesResponse{DefaultVoiceID: s.cfg.ElevenLabs.VoiceID, Voices: voices})
}

type voiceCloneResponse struct {
	VoiceID   string `json:"voice_id"`
	ProfileID string `json:"profile_id,omitempty"`
}

// handleVoiceClone accepts audio samples under "files" (or a single "sample") and an
// optional "name". With "profile_id" the new voice becomes the profile's voice.
func (s *Server) handleVoiceClone(w http.ResponseWriter, r *http.Request) {
	if s.deps.Voice == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "voice provider not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCloneBytes)
	if err := r.ParseMultipartForm(maxCloneBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["sample"]...)
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "Audio file is required.")
		return
	}
	samples := make([]voice.Sample, 0, len(headers))
	for _, fh := range headers {
		sample, err := readSample(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		samples = append(samples, sample)
	}

	ctx := r.Context()
	name := strings.TrimSpace(r.FormValue("name"))
	voiceID, err := s.deps.Voice.Clone(ctx, name, samples)
	if err != nil {
		logging.FromCtx(ctx).Error().Err(err).Int("samples", len(samples)).Msg("voice clone failed")
		respondError(w, http.StatusBadGateway, "clone_failed", "ElevenLabs voice clone failed: "+err.Error())
		return
	}

	resp := voiceCloneResponse{VoiceID: voiceID}
	if profileID := strings.TrimSpace(r.FormValue("profile_id")); profileID != "" {
		if _, err := s.deps.Store.UpdateProfileVoice(ctx, profileID, voiceID); err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				respondError(w, http.StatusNotFound, "not_found", "Profile not found")
				return
			}
			respondStoreError(w, r, err, "")
			return
		}
		resp.ProfileID = profileID
	}
	respondJSON(w, http.StatusOK, resp)
}

func readSample(fh *multipart.FileHeader) (voice.Sample, error) {
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "audio/") {
		return voice.Sample{}, errors.New("audio file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return voice.Sample{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return voice.Sample{}, err
	}
	if len(data) == 0 {
		return voice.Sample{}, fmt.Errorf("audio sample %s is empty", fh.Filename)
	}
	return voice.Sample{FileName: fh.Filename, ContentType: contentType, Data: data}, nil
}
