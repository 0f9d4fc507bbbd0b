package memory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrJobNotRunning  = errors.New("job is not running")
	ErrEmptyPatch     = errors.New("no fields provided for update")
	ErrMissingProfile = errors.New("profile id is required")
)

// Store is the record store shared by the API, the worker and the retrieval engine.
type Store interface {
	CreateProfile(ctx context.Context, p Profile) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	FindProfileByName(ctx context.Context, name string) (Profile, error)
	UpdateProfileVoice(ctx context.Context, id, voiceID string) (Profile, error)

	// EnsureMediaAsset returns the asset for (profile, object key), inserting it when absent.
	EnsureMediaAsset(ctx context.Context, a MediaAsset) (MediaAsset, bool, error)
	GetMediaAsset(ctx context.Context, id string) (MediaAsset, error)
	ListMediaAssets(ctx context.Context, profileID string) ([]MediaAsset, error)

	// EnsureJob returns the job for (media asset, job type), inserting a queued one when absent.
	EnsureJob(ctx context.Context, j Job) (Job, bool, error)
	GetJob(ctx context.Context, id int64) (Job, error)
	ListJobs(ctx context.Context, profileID string) ([]Job, error)
	// NextQueuedJob returns the oldest queued job of jobType or ErrNotFound.
	NextQueuedJob(ctx context.Context, jobType string) (Job, error)
	// ClaimJob moves a queued job to running. It reports false when the job was not queued.
	ClaimJob(ctx context.Context, id int64, now time.Time) (bool, error)
	// FinishJob moves a running job to done or failed. An empty detail clears error_detail.
	FinishJob(ctx context.Context, id int64, status JobStatus, detail string, now time.Time) error

	ListMemoryUnits(ctx context.Context, mediaAssetID string) ([]MemoryUnit, error)
	InsertMemoryUnits(ctx context.Context, units []MemoryUnit) ([]MemoryUnit, error)
	UpdateMemoryUnits(ctx context.Context, mediaAssetID string, patch MemoryUnitPatch) ([]MemoryUnit, error)
	// ProfileKeywords lists distinct keywords case-insensitively, keeping first-seen casing.
	ProfileKeywords(ctx context.Context, profileID string) ([]string, error)
	SearchMemoryUnits(ctx context.Context, profileID string, q SearchQuery) ([]RetrievedMemory, error)

	Ping(ctx context.Context) error
	Close() error
}
