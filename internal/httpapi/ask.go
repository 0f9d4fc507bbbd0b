package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/retrieval"
	"github.com/KhushM7/UncTube/internal/voice"
)

type askRequest struct {
	Question string `json:"question"`
	VoiceID  string `json:"voice_id,omitempty"`
}

type askVoiceResponse struct {
	retrieval.Result
	AudioBase64   string `json:"audio_base64"`
	AudioMIMEType string `json:"audio_mime_type"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	res, ok := s.ask(w, r, nil)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleAskVoice answers like handleAsk and speaks the answer. Voice resolution
// order is the request, then the profile, then the configured default.
func (s *Server) handleAskVoice(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	res, ok := s.ask(w, r, &req)
	if !ok {
		return
	}
	if res.NoContext {
		respondJSON(w, http.StatusOK, askVoiceResponse{Result: res, AudioMIMEType: "audio/mpeg"})
		return
	}
	if s.deps.Voice == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "voice provider not configured")
		return
	}

	ctx := r.Context()
	profileVoice := ""
	if strings.TrimSpace(req.VoiceID) == "" {
		p, err := s.deps.Store.GetProfile(ctx, chi.URLParam(r, "profileID"))
		if err != nil && !errors.Is(err, memory.ErrNotFound) {
			respondStoreError(w, r, err, "")
			return
		}
		profileVoice = p.VoiceID
	}
	voiceID, err := voice.ResolveVoiceID(req.VoiceID, profileVoice, s.cfg.ElevenLabs.VoiceID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_voice_id", err.Error())
		return
	}

	text := voice.SpeakableText(res.AnswerText)
	if text == "" {
		text = res.AnswerText
	}
	start := time.Now()
	clip, err := s.deps.Voice.Synthesize(ctx, voiceID, text)
	s.deps.Metrics.ObserveStage("ask_tts", time.Since(start))
	if err != nil {
		logging.FromCtx(ctx).Error().Err(err).Str("voice_id", voiceID).Msg("tts failed")
		respondError(w, http.StatusBadGateway, "tts_failed", "ElevenLabs TTS failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, askVoiceResponse{
		Result:        res,
		AudioBase64:   base64.StdEncoding.EncodeToString(clip.Data),
		AudioMIMEType: clip.MIMEType,
	})
}

// ask decodes the request into req (or a local one) and runs the engine. It writes
// the error response itself and reports whether the caller should continue.
func (s *Server) ask(w http.ResponseWriter, r *http.Request, req *askRequest) (retrieval.Result, bool) {
	if req == nil {
		req = &askRequest{}
	}
	if err := decodeJSON(r, req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return retrieval.Result{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "Question is required.")
		return retrieval.Result{}, false
	}
	if s.deps.Engine == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "retrieval engine not configured")
		return retrieval.Result{}, false
	}

	res, err := s.deps.Engine.Ask(r.Context(), chi.URLParam(r, "profileID"), req.Question)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuestion) {
			respondError(w, http.StatusBadRequest, "invalid_request", "Question is required.")
			return retrieval.Result{}, false
		}
		logging.FromCtx(r.Context()).Error().Err(err).Msg("ask failed")
		respondError(w, http.StatusBadGateway, "answer_failed", err.Error())
		return retrieval.Result{}, false
	}
	return res, true
}
