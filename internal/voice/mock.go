package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider is a local fallback used when ElevenLabs is not configured. Audio is
// the UTF-8 text itself, labelled as MP3.
type MockProvider struct {
	Err error

	mu          sync.Mutex
	voices      []VoiceInfo
	synthesized []string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{voices: []VoiceInfo{{VoiceID: "mock-narrator", Name: "Narrator", Category: "premade"}}}
}

func (p *MockProvider) Synthesize(_ context.Context, voiceID, text string) (Audio, error) {
	if p.Err != nil {
		return Audio{}, p.Err
	}
	if strings.TrimSpace(voiceID) == "" {
		return Audio{}, ErrNoVoice
	}
	if strings.TrimSpace(text) == "" {
		return Audio{}, ErrEmptyText
	}
	p.mu.Lock()
	p.synthesized = append(p.synthesized, voiceID)
	p.mu.Unlock()
	return Audio{Data: []byte(text), MIMEType: "audio/mpeg", Format: "mp3_44100_128"}, nil
}

func (p *MockProvider) Clone(_ context.Context, name string, samples []Sample) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	if len(samples) == 0 {
		return "", ErrNoSamples
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultCloneName
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("mock-clone-%d", len(p.voices))
	p.voices = append(p.voices, VoiceInfo{VoiceID: id, Name: name, Category: "cloned"})
	return id, nil
}

func (p *MockProvider) ListVoices(context.Context) ([]VoiceInfo, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]VoiceInfo(nil), p.voices...), nil
}

// Synthesized lists the voice ids used so far, oldest first.
func (p *MockProvider) Synthesized() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.synthesized...)
}
