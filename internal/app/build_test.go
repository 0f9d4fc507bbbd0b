package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhushM7/UncTube/internal/config"
	"github.com/KhushM7/UncTube/internal/extraction"
	"github.com/KhushM7/UncTube/internal/jobs"
	"github.com/KhushM7/UncTube/internal/media"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/objectstore"
)

func localConfig() config.Config {
	cfg := config.Config{
		ShutdownTimeout:      5 * time.Second,
		MetricsNamespace:     "heirloom_build_test",
		APIPrefix:            "/api/v1",
		ExtractionMode:       "auto",
		WorkerPollInterval:   50 * time.Millisecond,
		RetrievalTopK:        8,
		RetrievalKeywordTopN: 8,
		SourcePolicy:         "used",
		SourceURLStyle:       "public",
		VoiceProvider:        "auto",
	}
	cfg.S3.PresignTTL = time.Hour
	return cfg
}

func TestBuildLocalStack(t *testing.T) {
	res, err := Build(context.Background(), localConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, res.Cleanup())
	})

	assert.IsType(t, &memory.InMemoryStore{}, res.Store, "in-memory store without DATABASE_URL")
	assert.IsType(t, &objectstore.InMemoryStore{}, res.Objects, "in-memory objects without a bucket")
	assert.Equal(t, "mock", res.VoiceInfo.Provider)
	assert.Equal(t, "mock", res.Config.VoiceProvider)

	rec := httptest.NewRecorder()
	res.API.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.True(t, res.Worker.Start(context.Background()))
}

func TestBuildRejectsUnknownVoiceProvider(t *testing.T) {
	cfg := localConfig()
	cfg.MetricsNamespace = "heirloom_build_test_bad_voice"
	cfg.VoiceProvider = "kokoro"
	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}

// poolStore behaves like a pgx-backed store: once closed, every job write fails.
type poolStore struct {
	*memory.InMemoryStore
	worker         *jobs.Worker
	closed         atomic.Bool
	runningAtClose bool
}

func (s *poolStore) Close() error {
	s.runningAtClose = s.worker.Status().Running
	s.closed.Store(true)
	return nil
}

func (s *poolStore) FinishJob(ctx context.Context, id int64, status memory.JobStatus, detail string, now time.Time) error {
	if s.closed.Load() {
		return errors.New("closed pool")
	}
	return s.InMemoryStore.FinishJob(ctx, id, status, detail, now)
}

type stalledCollab struct {
	*extraction.MockCollaborator
	entered chan struct{}
	release chan struct{}
}

func (c *stalledCollab) ExtractFromText(ctx context.Context, text string, modality media.Modality) ([]extraction.Fact, error) {
	close(c.entered)
	<-c.release
	return c.MockCollaborator.ExtractFromText(ctx, text, modality)
}

func newShutdownStack(t *testing.T, collab extraction.Collaborator) (*poolStore, *jobs.Worker) {
	t.Helper()
	store := &poolStore{InMemoryStore: memory.NewInMemoryStore()}
	objects := objectstore.NewInMemoryStore("test")
	ex := jobs.NewExtractor(store, objects, collab, t.TempDir())
	store.worker = jobs.NewWorker(jobs.Config{PollInterval: 10 * time.Millisecond}, store, ex, nil)

	ctx := context.Background()
	_, err := store.CreateProfile(ctx, memory.Profile{ID: "p1"})
	require.NoError(t, err)
	key := media.BuildObjectKey("p1", "story.txt", "a1")
	_, _, err = store.EnsureMediaAsset(ctx, memory.MediaAsset{
		ID: "a1", ProfileID: "p1", ObjectKey: key, FileName: "story.txt", MIMEType: "text/plain", Bytes: 5,
	})
	require.NoError(t, err)
	objects.Put(key, "text/plain", []byte("hello"))
	return store, store.worker
}

func TestShutdownClosesStoreAfterWorkerStops(t *testing.T) {
	store, worker := newShutdownStack(t, extraction.NewMockCollaborator())
	require.True(t, worker.Start(context.Background()))

	require.NoError(t, shutdown(time.Second, worker, store))
	assert.True(t, store.closed.Load())
	assert.False(t, store.runningAtClose, "store closed while the worker was still running")
}

func TestShutdownTimeoutFailsInFlightJob(t *testing.T) {
	collab := &stalledCollab{
		MockCollaborator: extraction.NewMockCollaborator(),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	store, worker := newShutdownStack(t, collab)
	ctx := context.Background()
	job, _, err := store.EnsureJob(ctx, memory.Job{ProfileID: "p1", MediaAssetID: "a1"})
	require.NoError(t, err)

	require.True(t, worker.Start(ctx))
	select {
	case <-collab.entered:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "extraction never started")
	}

	err = shutdown(20*time.Millisecond, worker, store)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, store.closed.Load())

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.JobStatusFailed, got.Status, "job must not stay running")
	require.NotNil(t, got.ErrorDetail)
	assert.Equal(t, jobs.InterruptedDetail, *got.ErrorDetail)

	close(collab.release)
	require.Eventually(t, func() bool { return !worker.Status().Running }, 2*time.Second, 5*time.Millisecond)
}
