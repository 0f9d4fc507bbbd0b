package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the heirloom service.
type Config struct {
	BindAddr         string        `env:"APP_BIND_ADDR" envDefault:":8080"`
	ShutdownTimeout  time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MetricsNamespace string        `env:"APP_METRICS_NAMESPACE" envDefault:"heirloom"`
	APIPrefix        string        `env:"API_PREFIX" envDefault:"/api/v1"`
	CORSAllowOrigins []string      `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	Debug     bool   `env:"LOG_LEVEL_DEBUG" envDefault:"false"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	DatabaseURL     string `env:"DATABASE_URL"`
	DatabaseMigrate bool   `env:"DATABASE_MIGRATE" envDefault:"true"`

	S3 S3Config

	ExtractionMode string        `env:"EXTRACTION_MODE" envDefault:"auto"`
	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
	GeminiModel    string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-pro"`
	GeminiBaseURL  string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	GeminiTimeout  time.Duration `env:"GEMINI_TIMEOUT" envDefault:"120s"`

	WorkerEnabled      bool          `env:"WORKER_ENABLED" envDefault:"true"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"3s"`
	WorkerTempDir      string        `env:"WORKER_TEMP_DIR"`

	RetrievalTopK        int    `env:"RETRIEVAL_TOP_K" envDefault:"8"`
	RetrievalKeywordTopN int    `env:"RETRIEVAL_KEYWORD_TOP_N" envDefault:"8"`
	SourcePolicy         string `env:"SOURCE_POLICY" envDefault:"used"`
	SourceURLStyle       string `env:"SOURCE_URL_STYLE" envDefault:"public"`

	VoiceProvider string `env:"VOICE_PROVIDER" envDefault:"auto"`
	ElevenLabs    ElevenLabsConfig
}

// S3Config holds object storage settings. An empty bucket selects the in-memory store.
type S3Config struct {
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string        `env:"AWS_REGION"`
	Bucket          string        `env:"AWS_S3_BUCKET"`
	EndpointURL     string        `env:"AWS_S3_ENDPOINT_URL"`
	PresignTTL      time.Duration `env:"PRESIGN_TTL" envDefault:"1h"`
}

type ElevenLabsConfig struct {
	APIKey       string        `env:"ELEVENLABS_API_KEY"`
	VoiceID      string        `env:"ELEVENLABS_VOICE_ID"`
	TTSModel     string        `env:"ELEVENLABS_TTS_MODEL_ID" envDefault:"eleven_multilingual_v2"`
	OutputFormat string        `env:"ELEVENLABS_TTS_OUTPUT_FORMAT" envDefault:"mp3_44100_128"`
	BaseURL      string        `env:"ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io"`
	WSBaseURL    string        `env:"ELEVENLABS_WS_BASE_URL" envDefault:"wss://api.elevenlabs.io"`
	Timeout      time.Duration `env:"ELEVENLABS_TIMEOUT" envDefault:"60s"`
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (Config, error) {
	if path := strings.TrimSpace(os.Getenv("APP_ENV_FILE")); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	// DEFAULT_TOP_K is the older name for RETRIEVAL_TOP_K.
	if strings.TrimSpace(os.Getenv("RETRIEVAL_TOP_K")) == "" {
		if v := strings.TrimSpace(os.Getenv("DEFAULT_TOP_K")); v != "" {
			var n int
			if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
				return Config{}, fmt.Errorf("DEFAULT_TOP_K parse error: %w", err)
			}
			cfg.RetrievalTopK = n
		}
	}

	cfg.ExtractionMode = strings.ToLower(strings.TrimSpace(cfg.ExtractionMode))
	cfg.SourcePolicy = strings.ToLower(strings.TrimSpace(cfg.SourcePolicy))
	cfg.SourceURLStyle = strings.ToLower(strings.TrimSpace(cfg.SourceURLStyle))
	cfg.VoiceProvider = strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.CORSAllowOrigins = trimAll(cfg.CORSAllowOrigins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.WorkerPollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive")
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if c.RetrievalKeywordTopN <= 0 {
		return fmt.Errorf("RETRIEVAL_KEYWORD_TOP_N must be positive")
	}
	if c.S3.PresignTTL <= 0 {
		return fmt.Errorf("PRESIGN_TTL must be positive")
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with /")
	}
	switch c.SourcePolicy {
	case "all", "used":
	default:
		return fmt.Errorf("SOURCE_POLICY must be all or used, got %q", c.SourcePolicy)
	}
	switch c.SourceURLStyle {
	case "public", "presigned":
	default:
		return fmt.Errorf("SOURCE_URL_STYLE must be public or presigned, got %q", c.SourceURLStyle)
	}
	switch c.ExtractionMode {
	case "auto", "mock":
	case "gemini":
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			return fmt.Errorf("EXTRACTION_MODE=gemini requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("EXTRACTION_MODE must be auto, gemini or mock, got %q", c.ExtractionMode)
	}
	switch c.VoiceProvider {
	case "auto", "mock":
	case "elevenlabs":
		if strings.TrimSpace(c.ElevenLabs.APIKey) == "" {
			return fmt.Errorf("VOICE_PROVIDER=elevenlabs requires ELEVENLABS_API_KEY")
		}
	default:
		return fmt.Errorf("VOICE_PROVIDER must be auto, elevenlabs or mock, got %q", c.VoiceProvider)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// IsDebug reports whether LOG_LEVEL_DEBUG is set, without a full Load.
func IsDebug() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL_DEBUG")))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
