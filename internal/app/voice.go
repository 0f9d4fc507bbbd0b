package app

import (
	"context"
	"strings"

	"github.com/KhushM7/UncTube/internal/config"
	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/voice"
)

type voiceSetup struct {
	provider         voice.Provider
	resolvedProvider string
	defaultVoiceID   string
	defaultModelID   string
	detail           string
}

func resolveVoiceProvider(ctx context.Context, cfg config.Config) (voiceSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	if mode == "" {
		mode = "auto"
	}
	p, err := voice.New(mode, voice.ElevenLabsConfig{
		APIKey:       cfg.ElevenLabs.APIKey,
		BaseURL:      cfg.ElevenLabs.BaseURL,
		WSBaseURL:    cfg.ElevenLabs.WSBaseURL,
		ModelID:      cfg.ElevenLabs.TTSModel,
		OutputFormat: cfg.ElevenLabs.OutputFormat,
		Timeout:      cfg.ElevenLabs.Timeout,
	})
	if err != nil {
		return voiceSetup{}, err
	}

	setup := voiceSetup{
		provider:       p,
		defaultVoiceID: cfg.ElevenLabs.VoiceID,
		defaultModelID: cfg.ElevenLabs.TTSModel,
	}
	if _, ok := p.(*voice.MockProvider); ok {
		setup.resolvedProvider = "mock"
		setup.defaultModelID = ""
		setup.detail = "mock (audio is the answer text)"
		if mode == "auto" {
			setup.detail = "mock (no elevenlabs key)"
			logging.FromCtx(ctx).Warn().Msg("ELEVENLABS_API_KEY not set, using mock voice provider")
		}
		return setup, nil
	}
	setup.resolvedProvider = "elevenlabs"
	setup.detail = "elevenlabs stream-input websocket"
	return setup, nil
}
