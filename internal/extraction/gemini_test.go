package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhushM7/UncTube/internal/media"
)

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	}
}

func newTestGemini(t *testing.T, url string) *GeminiClient {
	t.Helper()
	c, err := NewGeminiClient(GeminiConfig{APIKey: "k", Model: "test-model", BaseURL: url, Timeout: 5 * time.Second})
	require.NoError(t, err)
	c.retryBase = time.Millisecond
	c.retryCap = 2 * time.Millisecond
	c.pollInterval = time.Millisecond
	c.pollDeadline = time.Second
	return c
}

func TestGeminiExtractFromTextSendsPromptAndParses(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(textResponse(`{"memory_units":[{"title":"Moving to London","keywords":["london"]}]}`))
	}))
	defer srv.Close()

	facts, err := newTestGemini(t, srv.URL).ExtractFromText(context.Background(), "We moved to London.", media.ModalityText)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Moving to London", facts[0].Title)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, extractionSystemPrompt, got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Contains(t, got.Contents[0].Parts[0].Text, "Modality: text.")
	assert.Equal(t, "We moved to London.", got.Contents[0].Parts[1].Text)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMIMEType)
	require.NotNil(t, got.GenerationConfig.Temperature)
	assert.Zero(t, *got.GenerationConfig.Temperature)
	assert.Equal(t, 1536, got.GenerationConfig.MaxOutputTokens)
}

func TestGeminiRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(textResponse(`{"answer_text":"Yes.","used_citation_ids":["m1"]}`))
	}))
	defer srv.Close()

	ans, err := newTestGemini(t, srv.URL).Answer(context.Background(), "q", ContextPack{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Yes.", ans.Text)
	assert.Equal(t, []string{"m1"}, ans.UsedIDs)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGeminiDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestGemini(t, srv.URL).MatchKeywords(context.Background(), "q", []string{"a"}, 8)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGeminiInlinesSmallFiles(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(textResponse("  hello there  "))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake audio"), 0o600))

	transcript, err := newTestGemini(t, srv.URL).Transcribe(context.Background(), path, "audio/mpeg", media.ModalityAudio)
	require.NoError(t, err)
	assert.Equal(t, "hello there", transcript)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Equal(t, transcriptPrompt, got.Contents[0].Parts[0].Text)
	require.NotNil(t, got.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "audio/mpeg", got.Contents[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, "text/plain", got.GenerationConfig.ResponseMIMEType)
	assert.Equal(t, 8192, got.GenerationConfig.MaxOutputTokens)
}

func TestGeminiUploadsLargeFilesAndDeletesThem(t *testing.T) {
	var (
		mu      sync.Mutex
		events  []string
		polls   atomic.Int32
		srvURL  string
		genBody generateRequest
	)
	record := func(e string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/v1beta/files":
			assert.Equal(t, "start", r.Header.Get("X-Goog-Upload-Command"))
			assert.Equal(t, "video/mp4", r.Header.Get("X-Goog-Upload-Header-Content-Type"))
			record("start")
			w.Header().Set("X-Goog-Upload-URL", srvURL+"/resumable/abc")
		case r.Method == http.MethodPost && r.URL.Path == "/resumable/abc":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "0123456789", string(body))
			record("upload")
			_ = json.NewEncoder(w).Encode(map[string]any{"file": map[string]any{
				"name": "files/abc", "uri": "https://files/abc", "mimeType": "video/mp4", "state": "PROCESSING",
			}})
		case r.Method == http.MethodGet && r.URL.Path == "/v1beta/files/abc":
			state := "PROCESSING"
			if polls.Add(1) >= 2 {
				state = "ACTIVE"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "files/abc", "uri": "https://files/abc", "state": state})
		case r.Method == http.MethodDelete && r.URL.Path == "/v1beta/files/abc":
			record("delete")
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&genBody))
			record("generate")
			_ = json.NewEncoder(w).Encode(textResponse(`{"memory_units":[{"title":"Clip"}]}`))
		default:
			assert.Failf(t, "unexpected request", "%s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	c := newTestGemini(t, srv.URL)
	c.inlineLimit = 4
	facts, err := c.ExtractFromFile(context.Background(), path, "video/mp4", media.ModalityVideo)
	require.NoError(t, err)
	require.Len(t, facts, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"start", "upload", "generate", "delete"}, events)
	require.NotNil(t, genBody.Contents[0].Parts[1].FileData)
	assert.Equal(t, "https://files/abc", genBody.Contents[0].Parts[1].FileData.FileURI)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestNewFactoryModes(t *testing.T) {
	c, err := New(context.Background(), Config{Mode: "auto"})
	require.NoError(t, err)
	assert.IsType(t, &MockCollaborator{}, c)

	c, err = New(context.Background(), Config{Mode: "auto", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, c)

	_, err = New(context.Background(), Config{Mode: "gemini"})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Mode: "bogus"})
	require.Error(t, err)
}
