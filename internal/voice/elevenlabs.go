package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KhushM7/UncTube/internal/reliability"
)

// APIError is a non-2xx response from the ElevenLabs REST API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs http status %d: %s", e.StatusCode, e.Body)
}

type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	WSBaseURL    string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
	Settings     TTSSettings
}

// ElevenLabsClient synthesizes through the stream-input websocket and clones and
// lists voices through the REST API.
type ElevenLabsClient struct {
	cfg    ElevenLabsConfig
	http   *http.Client
	dialer *websocket.Dialer
}

func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.WSBaseURL = strings.TrimRight(cfg.WSBaseURL, "/")
	return &ElevenLabsClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Synthesize sends the whole text through one stream and returns the assembled clip.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, voiceID, text string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, ErrEmptyText
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	stream, err := c.StartStream(ctx, voiceID)
	if err != nil {
		return Audio{}, err
	}
	defer stream.Close()

	// Trailing space lets the provider flush the last word.
	if err := stream.SendText(ctx, strings.TrimSpace(text)+" ", true); err != nil {
		return Audio{}, fmt.Errorf("send text: %w", err)
	}
	if err := stream.CloseInput(ctx); err != nil {
		return Audio{}, fmt.Errorf("close input: %w", err)
	}

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				return c.finish(buf.Bytes())
			}
			switch ev.Type {
			case TTSEventAudio:
				chunk, err := base64.StdEncoding.DecodeString(ev.AudioBase64)
				if err != nil {
					return Audio{}, fmt.Errorf("decode audio chunk: %w", err)
				}
				buf.Write(chunk)
			case TTSEventFinal:
				return c.finish(buf.Bytes())
			case TTSEventError:
				return Audio{}, fmt.Errorf("elevenlabs tts %s: %s", ev.Code, ev.Detail)
			}
		}
	}
}

func (c *ElevenLabsClient) finish(data []byte) (Audio, error) {
	if len(data) == 0 {
		return Audio{}, errors.New("elevenlabs tts returned no audio")
	}
	return finishAudio(data, c.cfg.OutputFormat)
}

// StartStream opens a stream-input session for voiceID and primes it with voice settings.
func (c *ElevenLabsClient) StartStream(ctx context.Context, voiceID string) (TTSStream, error) {
	if strings.TrimSpace(voiceID) == "" {
		return nil, ErrNoVoice
	}
	u, err := url.Parse(c.cfg.WSBaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model_id", c.cfg.ModelID)
	q.Set("output_format", c.cfg.OutputFormat)
	q.Set("auto_mode", "true")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", c.cfg.APIKey)

	conn, _, err := c.dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("dial tts websocket: %w", err)
	}

	s := &elevenTTSStream{conn: conn, events: make(chan TTSEvent, 512)}
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	s.stop = stop
	go s.readLoop()

	stability, similarity, speed := normalizeSettings(c.cfg.Settings)
	if err := s.writeJSON(map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        stability,
			"similarity_boost": similarity,
			"speed":            speed,
		},
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("prime tts stream: %w", err)
	}
	return s, nil
}

func normalizeSettings(s TTSSettings) (stability, similarity, speed float64) {
	stability = s.Stability
	if stability <= 0 {
		stability = 0.5
	} else if stability > 1 {
		stability = 1
	}
	similarity = s.SimilarityBoost
	if similarity <= 0 {
		similarity = 0.85
	} else if similarity > 1 {
		similarity = 1
	}
	speed = s.Speed
	if speed <= 0 {
		speed = 1.0
	}
	if speed < 0.7 {
		speed = 0.7
	} else if speed > 1.2 {
		speed = 1.2
	}
	return stability, similarity, speed
}

// Clone creates an instant voice clone from the samples and returns its voice id.
func (c *ElevenLabsClient) Clone(ctx context.Context, name string, samples []Sample) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoSamples
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultCloneName
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("name", name); err != nil {
		return "", err
	}
	for i, sample := range samples {
		if len(sample.Data) == 0 {
			return "", fmt.Errorf("sample %d is empty", i)
		}
		fileName := sample.FileName
		if fileName == "" {
			fileName = "sample-" + strconv.Itoa(i+1)
		}
		contentType := sample.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(fileName)))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		if _, err := part.Write(sample.Data); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/voices/add", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		VoiceID string `json:"voice_id"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return "", fmt.Errorf("clone voice: %w", err)
	}
	if strings.TrimSpace(out.VoiceID) == "" {
		return "", errors.New("elevenlabs clone returned no voice_id")
	}
	return out.VoiceID, nil
}

// ListVoices returns the account's voices sorted by name.
func (c *ElevenLabsClient) ListVoices(ctx context.Context) ([]VoiceInfo, error) {
	var parsed struct {
		Voices []VoiceInfo `json:"voices"`
	}
	err := reliability.Retry(ctx, 3, 500*time.Millisecond, 2*time.Second, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/voices", nil)
		if err != nil {
			return reliability.Permanent(err)
		}
		return c.doJSON(req, &parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}

	out := make([]VoiceInfo, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		v.VoiceID = strings.TrimSpace(v.VoiceID)
		v.Name = strings.TrimSpace(v.Name)
		if v.VoiceID == "" || v.Name == "" {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (c *ElevenLabsClient) doJSON(req *http.Request, out any) error {
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return apiErr
		}
		return reliability.Permanent(apiErr)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return reliability.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

type elevenTTSStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan TTSEvent
	stop      func() bool
}

func (s *elevenTTSStream) SendText(_ context.Context, text string, tryTrigger bool) error {
	return s.writeJSON(map[string]any{
		"text":                   text,
		"try_trigger_generation": tryTrigger,
	})
}

// CloseInput sends the empty-text end-of-input marker.
func (s *elevenTTSStream) CloseInput(_ context.Context) error {
	return s.writeJSON(map[string]any{"text": ""})
}

func (s *elevenTTSStream) Events() <-chan TTSEvent { return s.events }

func (s *elevenTTSStream) Close() error {
	if s.stop != nil {
		s.stop()
	}
	return s.conn.Close()
}

func (s *elevenTTSStream) writeJSON(payload map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

func (s *elevenTTSStream) readLoop() {
	defer s.closeOnce.Do(func() { close(s.events) })
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		if audio := asString(raw["audio"]); audio != "" {
			s.events <- TTSEvent{Type: TTSEventAudio, AudioBase64: audio}
		}
		if errMsg := asString(raw["error"]); errMsg != "" {
			s.events <- TTSEvent{Type: TTSEventError, Code: asString(raw["message_type"]), Detail: errMsg}
			return
		}
		if asBool(raw["isFinal"]) || asBool(raw["is_final"]) {
			s.events <- TTSEvent{Type: TTSEventFinal}
			return
		}
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
