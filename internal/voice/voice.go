// Package voice speaks answers in a cloned voice and manages voice clones.
package voice

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoVoice   = errors.New("missing voice_id: provide one, store one on the profile or set ELEVENLABS_VOICE_ID")
	ErrEmptyText = errors.New("text is required")
	ErrNoSamples = errors.New("at least one audio sample is required")
)

// Audio is a complete synthesized clip.
type Audio struct {
	Data     []byte
	MIMEType string
	// Format is the provider output format, e.g. mp3_44100_128.
	Format string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string) (Audio, error)
}

// Sample is one recording submitted for cloning.
type Sample struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Cloner interface {
	Clone(ctx context.Context, name string, samples []Sample) (string, error)
}

type VoiceInfo struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

type Catalog interface {
	ListVoices(ctx context.Context) ([]VoiceInfo, error)
}

// Provider bundles everything the HTTP layer needs from a voice backend.
type Provider interface {
	Synthesizer
	Cloner
	Catalog
}

// DefaultCloneName names clones created without an explicit name.
const DefaultCloneName = "Heirloom Voice"

// ResolveVoiceID picks the first non-blank id among the request, the profile and the
// configured default.
func ResolveVoiceID(candidates ...string) (string, error) {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c, nil
		}
	}
	return "", ErrNoVoice
}

type TTSEventType string

const (
	TTSEventAudio TTSEventType = "audio"
	TTSEventFinal TTSEventType = "final"
	TTSEventError TTSEventType = "error"
)

type TTSEvent struct {
	Type        TTSEventType
	AudioBase64 string
	Code        string
	Detail      string
}

type TTSSettings struct {
	Stability       float64
	SimilarityBoost float64
	Speed           float64
}

// TTSStream is one open text-to-speech session. Text is sent incrementally and
// audio arrives on Events until a final or error event, after which the channel closes.
type TTSStream interface {
	SendText(ctx context.Context, text string, tryTrigger bool) error
	CloseInput(ctx context.Context) error
	Events() <-chan TTSEvent
	Close() error
}
