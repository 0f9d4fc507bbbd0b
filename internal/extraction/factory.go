package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KhushM7/UncTube/internal/logging"
)

// Config controls collaborator construction.
type Config struct {
	Mode    string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// New builds the collaborator for cfg.Mode. "auto" picks Gemini when a key is set
// and falls back to the mock otherwise.
func New(ctx context.Context, cfg Config) (Collaborator, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}
	gemini := GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			logging.FromCtx(ctx).Warn().Msg("GEMINI_API_KEY not set, using mock extraction collaborator")
			return NewMockCollaborator(), nil
		}
		return NewGeminiClient(gemini)
	case "gemini":
		return NewGeminiClient(gemini)
	case "mock":
		return NewMockCollaborator(), nil
	default:
		return nil, fmt.Errorf("unsupported extraction mode %q", cfg.Mode)
	}
}
