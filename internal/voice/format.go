package voice

import (
	"strconv"
	"strings"

	"github.com/KhushM7/UncTube/internal/audio"
)

// MIMEForFormat maps a provider output format to the MIME type of the delivered clip.
// PCM formats are delivered as WAV.
func MIMEForFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	switch {
	case strings.HasPrefix(f, "pcm_"), strings.Contains(f, "wav"):
		return "audio/wav"
	case strings.HasPrefix(f, "mp3"):
		return "audio/mpeg"
	case strings.HasPrefix(f, "ulaw"):
		return "audio/basic"
	case strings.HasPrefix(f, "opus"), strings.Contains(f, "ogg"):
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

func pcmSampleRate(format string) (int, bool) {
	f := strings.ToLower(strings.TrimSpace(format))
	idx := strings.Index(f, "pcm_")
	if idx < 0 {
		return 0, false
	}
	rest := f[idx+len("pcm_"):]
	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	sr, err := strconv.Atoi(rest[:n])
	if err != nil || sr <= 0 {
		return 16000, true
	}
	return sr, true
}

// finishAudio wraps raw PCM in a WAV container and labels the clip.
func finishAudio(data []byte, format string) (Audio, error) {
	if sr, ok := pcmSampleRate(format); ok {
		wav, err := audio.EncodeWAVPCM16LE(data, sr)
		if err != nil {
			return Audio{}, err
		}
		data = wav
	}
	return Audio{Data: data, MIMEType: MIMEForFormat(format), Format: format}, nil
}
