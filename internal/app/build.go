package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KhushM7/UncTube/internal/config"
	"github.com/KhushM7/UncTube/internal/extraction"
	"github.com/KhushM7/UncTube/internal/httpapi"
	"github.com/KhushM7/UncTube/internal/jobs"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/objectstore"
	"github.com/KhushM7/UncTube/internal/observability"
	"github.com/KhushM7/UncTube/internal/retrieval"
	"github.com/KhushM7/UncTube/internal/voice"
)

type VoiceInfo struct {
	Provider       string
	Detail         string
	DefaultVoiceID string
	DefaultModelID string
}

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Store   memory.Store
	Objects objectstore.Store
	Worker  *jobs.Worker
	Engine  *retrieval.Engine
	Voice   voice.Provider
	Metrics *observability.Metrics

	VoiceInfo VoiceInfo

	// Cleanup stops the worker and releases the database pool.
	Cleanup func() error
}

// Build wires every component from cfg. ctx is the process context: the worker and
// any loop started over HTTP run under it.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.DatabaseMigrate)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	objects, err := objectstore.NewStore(objectstore.S3Config{
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Region:          cfg.S3.Region,
		Bucket:          cfg.S3.Bucket,
		EndpointURL:     cfg.S3.EndpointURL,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("object store init failed: %w", err)
	}

	collab, err := extraction.New(ctx, extraction.Config{
		Mode:    cfg.ExtractionMode,
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.GeminiTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("extraction collaborator init failed: %w", err)
	}

	vs, err := resolveVoiceProvider(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	cfg.VoiceProvider = vs.resolvedProvider

	extractor := jobs.NewExtractor(store, objects, collab, cfg.WorkerTempDir)
	worker := jobs.NewWorker(jobs.Config{PollInterval: cfg.WorkerPollInterval}, store, extractor, metrics)

	engine := retrieval.NewEngine(retrieval.Config{
		TopK:         cfg.RetrievalTopK,
		KeywordTopN:  cfg.RetrievalKeywordTopN,
		SourcePolicy: retrieval.SourcePolicy(cfg.SourcePolicy),
		URLStyle:     retrieval.URLStyle(cfg.SourceURLStyle),
		PresignTTL:   cfg.S3.PresignTTL,
	}, store, objects, collab, metrics)

	api := httpapi.New(ctx, cfg, httpapi.Deps{
		Store:   store,
		Objects: objects,
		Engine:  engine,
		Worker:  worker,
		Voice:   vs.provider,
		Metrics: metrics,
	})

	cleanup := func() error {
		return shutdown(cfg.ShutdownTimeout, worker, store)
	}

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Store:   store,
		Objects: objects,
		Worker:  worker,
		Engine:  engine,
		Voice:   vs.provider,
		Metrics: metrics,
		VoiceInfo: VoiceInfo{
			Provider:       vs.resolvedProvider,
			Detail:         vs.detail,
			DefaultVoiceID: vs.defaultVoiceID,
			DefaultModelID: vs.defaultModelID,
		},
		Cleanup: cleanup,
	}, nil
}

// shutdown closes the store only after the worker has stopped or has marked its
// in-flight job failed, so no job is stranded as running against a closed pool.
func shutdown(timeout time.Duration, worker *jobs.Worker, store memory.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return errors.Join(worker.Shutdown(ctx), store.Close())
}
