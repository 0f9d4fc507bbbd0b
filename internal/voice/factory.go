package voice

import (
	"fmt"
	"strings"
)

// New returns the ElevenLabs client in "elevenlabs" mode, the mock in "mock" mode, and
// in "auto" mode whichever the presence of an API key selects.
func New(mode string, cfg ElevenLabsConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return NewMockProvider(), nil
		}
		return NewElevenLabsClient(cfg), nil
	case "elevenlabs":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("VOICE_PROVIDER=elevenlabs requires ELEVENLABS_API_KEY")
		}
		return NewElevenLabsClient(cfg), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported voice provider %q", mode)
	}
}
