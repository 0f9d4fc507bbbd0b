package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/media"
	"github.com/KhushM7/UncTube/internal/reliability"
)

// inlineLimit is the largest file sent inside the request body; bigger files go
// through the Files API.
const inlineLimit int64 = 16 << 20

// APIError is a non-2xx response from the Gemini API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini http status %d: %s", e.StatusCode, e.Body)
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client

	inlineLimit   int64
	retryAttempts int
	retryBase     time.Duration
	retryCap      time.Duration
	pollInterval  time.Duration
	pollDeadline  time.Duration
}

func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-pro"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GeminiClient{
		apiKey:        cfg.APIKey,
		model:         model,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: timeout},
		inlineLimit:   inlineLimit,
		retryAttempts: 3,
		retryBase:     time.Second,
		retryCap:      4 * time.Second,
		pollInterval:  3 * time.Second,
		pollDeadline:  5 * time.Minute,
	}, nil
}

type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiFileData struct {
	MIMEType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlob     `json:"inlineData,omitempty"`
	FileData   *geminiFileData `json:"fileData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	State    string `json:"state"`
}

func zero() *float64 {
	v := 0.0
	return &v
}

func (c *GeminiClient) ExtractFromText(ctx context.Context, text string, modality media.Modality) ([]Fact, error) {
	out, err := c.generate(ctx, generateRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: extractionSystemPrompt}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: extractionPrompt(modality)}, {Text: text}},
		}},
		GenerationConfig: generationConfig{
			Temperature:      zero(),
			MaxOutputTokens:  maxTokensForExtraction(modality),
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return nil, err
	}
	return parseFacts(out)
}

func (c *GeminiClient) ExtractFromFile(ctx context.Context, path, mimeType string, modality media.Modality) ([]Fact, error) {
	part, cleanup, err := c.filePart(ctx, path, mimeType)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, err := c.generate(ctx, generateRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: extractionSystemPrompt}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: extractionPrompt(modality)}, part},
		}},
		GenerationConfig: generationConfig{
			Temperature:      zero(),
			MaxOutputTokens:  maxTokensForExtraction(modality),
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return nil, err
	}
	return parseFacts(out)
}

func (c *GeminiClient) Transcribe(ctx context.Context, path, mimeType string, modality media.Modality) (string, error) {
	part, cleanup, err := c.filePart(ctx, path, mimeType)
	if err != nil {
		return "", err
	}
	defer cleanup()

	out, err := c.generate(ctx, generateRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: extractionSystemPrompt}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: transcriptPrompt}, part},
		}},
		GenerationConfig: generationConfig{
			Temperature:      zero(),
			MaxOutputTokens:  maxTokensForTranscript(modality),
			ResponseMIMEType: "text/plain",
		},
	})
	if err != nil {
		return "", err
	}
	transcript := strings.TrimSpace(out)
	if transcript == "" {
		return "", fmt.Errorf("transcript generation returned empty output: %w", ErrEmptyResponse)
	}
	return transcript, nil
}

func (c *GeminiClient) Answer(ctx context.Context, question string, pack ContextPack) (Answer, error) {
	packJSON, err := json.Marshal(pack)
	if err != nil {
		return Answer{}, fmt.Errorf("marshal context pack: %w", err)
	}
	out, err := c.generate(ctx, generateRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: answerSystemPrompt}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: fmt.Sprintf(answerUserPrompt, question, packJSON)}},
		}},
		GenerationConfig: generationConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return Answer{}, err
	}
	return parseAnswer(out), nil
}

func (c *GeminiClient) MatchKeywords(ctx context.Context, question string, inventory []string, topN int) (KeywordMatch, error) {
	inventoryJSON, err := json.Marshal(inventory)
	if err != nil {
		return KeywordMatch{}, fmt.Errorf("marshal keyword inventory: %w", err)
	}
	out, err := c.generate(ctx, generateRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: keywordMatchSystemPrompt}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: fmt.Sprintf(keywordMatchUserPrompt, question, inventoryJSON, topN)}},
		}},
		GenerationConfig: generationConfig{Temperature: zero(), ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return KeywordMatch{}, err
	}
	return parseKeywordMatch(out), nil
}

// generate posts one generateContent request with retries and returns the joined
// candidate text.
func (c *GeminiClient) generate(ctx context.Context, req generateRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	var text string
	attempt := 0
	err = reliability.Retry(ctx, c.retryAttempts, c.retryBase, c.retryCap, func(ctx context.Context) error {
		attempt++
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return reliability.Permanent(fmt.Errorf("create request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		var res generateResponse
		if err := c.doJSON(httpReq, &res); err != nil {
			logging.FromCtx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("gemini generateContent failed")
			return err
		}
		if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
			return reliability.Permanent(fmt.Errorf("gemini blocked prompt: %s", res.PromptFeedback.BlockReason))
		}
		var b strings.Builder
		if len(res.Candidates) > 0 {
			for _, p := range res.Candidates[0].Content.Parts {
				b.WriteString(p.Text)
			}
		}
		text = b.String()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return text, nil
}

// doJSON sends req and decodes a 2xx JSON body into out. Non-retryable statuses come
// back as permanent errors.
func (c *GeminiClient) doJSON(req *http.Request, out any) error {
	req.Header.Set("x-goog-api-key", c.apiKey)
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		apiErr := &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return apiErr
		}
		return reliability.Permanent(apiErr)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// filePart returns the request part for a local file and a cleanup that removes any
// remote copy.
func (c *GeminiClient) filePart(ctx context.Context, path, mimeType string) (geminiPart, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return geminiPart{}, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() <= c.inlineLimit {
		data, err := os.ReadFile(path)
		if err != nil {
			return geminiPart{}, nil, fmt.Errorf("read %s: %w", path, err)
		}
		part := geminiPart{InlineData: &geminiBlob{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}}
		return part, func() {}, nil
	}

	f, err := c.uploadFile(ctx, path, mimeType, info.Size())
	if err != nil {
		return geminiPart{}, nil, err
	}
	cleanup := func() {
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := c.deleteFile(delCtx, f.Name); err != nil {
			logging.FromCtx(ctx).Warn().Err(err).Str("file", f.Name).Msg("gemini file delete failed")
		}
	}
	f, err = c.waitActive(ctx, f)
	if err != nil {
		cleanup()
		return geminiPart{}, nil, err
	}
	if f.MIMEType == "" {
		f.MIMEType = mimeType
	}
	return geminiPart{FileData: &geminiFileData{MIMEType: f.MIMEType, FileURI: f.URI}}, cleanup, nil
}

func (c *GeminiClient) uploadFile(ctx context.Context, path, mimeType string, size int64) (geminiFile, error) {
	meta, _ := json.Marshal(map[string]any{"file": map[string]string{"display_name": filepath.Base(path)}})
	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/v1beta/files", bytes.NewReader(meta))
	if err != nil {
		return geminiFile{}, fmt.Errorf("create upload request: %w", err)
	}
	startReq.Header.Set("Content-Type", "application/json")
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", fmt.Sprintf("%d", size))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	startReq.Header.Set("x-goog-api-key", c.apiKey)

	startRes, err := c.client.Do(startReq)
	if err != nil {
		return geminiFile{}, fmt.Errorf("start upload: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(startRes.Body, 4<<10))
	startRes.Body.Close()
	if startRes.StatusCode < 200 || startRes.StatusCode >= 300 {
		return geminiFile{}, &APIError{StatusCode: startRes.StatusCode, Body: "upload start rejected"}
	}
	uploadURL := startRes.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return geminiFile{}, errors.New("gemini upload start returned no upload url")
	}

	fh, err := os.Open(path)
	if err != nil {
		return geminiFile{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, fh)
	if err != nil {
		return geminiFile{}, fmt.Errorf("create upload body request: %w", err)
	}
	putReq.ContentLength = size
	putReq.Header.Set("X-Goog-Upload-Offset", "0")
	putReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	var uploaded struct {
		File geminiFile `json:"file"`
	}
	if err := c.doJSON(putReq, &uploaded); err != nil {
		return geminiFile{}, fmt.Errorf("upload file: %w", err)
	}
	if uploaded.File.Name == "" {
		return geminiFile{}, errors.New("gemini upload returned no file name")
	}
	return uploaded.File, nil
}

func (c *GeminiClient) waitActive(ctx context.Context, f geminiFile) (geminiFile, error) {
	if f.State == "" || f.State == "ACTIVE" {
		return f, nil
	}
	deadline := time.NewTimer(c.pollDeadline)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return geminiFile{}, ctx.Err()
		case <-deadline.C:
			return geminiFile{}, fmt.Errorf("uploaded file %s did not become ACTIVE in time", f.Name)
		case <-ticker.C:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1beta/"+f.Name, nil)
		if err != nil {
			return geminiFile{}, fmt.Errorf("create file status request: %w", err)
		}
		var refreshed geminiFile
		if err := c.doJSON(req, &refreshed); err != nil {
			return geminiFile{}, fmt.Errorf("poll file %s: %w", f.Name, err)
		}
		switch refreshed.State {
		case "ACTIVE":
			return refreshed, nil
		case "FAILED":
			return geminiFile{}, fmt.Errorf("uploaded file %s failed processing", f.Name)
		}
	}
}

func (c *GeminiClient) deleteFile(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}
