// Package audio holds container helpers for synthesized speech.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// DefaultSampleRate applies when a PCM stream does not name its rate.
const DefaultSampleRate = 16000

var ErrPCMTooLarge = errors.New("pcm payload exceeds the wav size limit")

// wavHeader is the canonical 44-byte RIFF/WAVE header for uncompressed mono PCM16LE.
type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func newWAVHeader(pcmLen, sampleRate int) wavHeader {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	return wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + pcmLen),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bitsPerSample / 8),
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(pcmLen),
	}
}

// WriteWAVPCM16LE writes raw mono PCM16LE samples to out as a WAV stream.
func WriteWAVPCM16LE(out io.Writer, pcm []byte, sampleRate int) error {
	if uint64(len(pcm)) > math.MaxUint32-36 {
		return ErrPCMTooLarge
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if err := binary.Write(out, binary.LittleEndian, newWAVHeader(len(pcm), sampleRate)); err != nil {
		return err
	}
	_, err := out.Write(pcm)
	return err
}

// EncodeWAVPCM16LE wraps raw mono PCM16LE samples in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := WriteWAVPCM16LE(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
