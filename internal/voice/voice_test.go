package voice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVoiceID(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{[]string{"req", "profile", "env"}, "req"},
		{[]string{" ", "profile", "env"}, "profile"},
		{[]string{"", "", "env"}, "env"},
	}
	for _, tc := range cases {
		got, err := ResolveVoiceID(tc.in...)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "ResolveVoiceID(%q)", tc.in)
	}
	_, err := ResolveVoiceID("", " ")
	assert.ErrorIs(t, err, ErrNoVoice)
}

func TestMIMEForFormat(t *testing.T) {
	cases := map[string]string{
		"mp3_44100_128": "audio/mpeg",
		"pcm_16000":     "audio/wav",
		"ulaw_8000":     "audio/basic",
		"opus_48000_64": "audio/ogg",
		"weird":         "application/octet-stream",
	}
	for format, want := range cases {
		assert.Equal(t, want, MIMEForFormat(format), "format %q", format)
	}
}

func TestPCMSampleRate(t *testing.T) {
	sr, ok := pcmSampleRate("pcm_24000")
	assert.True(t, ok)
	assert.EqualValues(t, 24000, sr)

	sr, ok = pcmSampleRate("pcm_")
	assert.True(t, ok)
	assert.EqualValues(t, 16000, sr)

	_, ok = pcmSampleRate("mp3_44100_128")
	assert.False(t, ok, "mp3 is not pcm")
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	ctx := context.Background()

	id, err := p.Clone(ctx, "", []Sample{{Data: []byte("x")}})
	require.NoError(t, err)
	voices, err := p.ListVoices(ctx)
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, id, voices[1].VoiceID)
	assert.Equal(t, DefaultCloneName, voices[1].Name)

	clip, err := p.Synthesize(ctx, id, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(clip.Data))
	assert.Equal(t, "audio/mpeg", clip.MIMEType)
	assert.Equal(t, []string{id}, p.Synthesized())
}
