package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedJob(t *testing.T, s *InMemoryStore) (MediaAsset, Job) {
	t.Helper()
	ctx := context.Background()
	_, err := s.CreateProfile(ctx, Profile{ID: "p1", Name: "Grandma"})
	require.NoError(t, err)
	asset, created, err := s.EnsureMediaAsset(ctx, MediaAsset{
		ID: "a1", ProfileID: "p1", ObjectKey: "profiles/p1/p1_a1_story.txt", MIMEType: "text/plain", Bytes: 12,
	})
	require.NoError(t, err)
	require.True(t, created)
	job, created, err := s.EnsureJob(ctx, Job{ProfileID: "p1", MediaAssetID: asset.ID})
	require.NoError(t, err)
	require.True(t, created)
	return asset, job
}

func TestEnsureJobIsIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	asset, job := seedJob(t, s)

	again, created, err := s.EnsureJob(context.Background(), Job{ProfileID: "p1", MediaAssetID: asset.ID})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, JobStatusQueued, again.Status)
	assert.Equal(t, JobTypeExtract, again.JobType)
	assert.Zero(t, again.Attempt)
}

func TestEnsureMediaAssetReturnsExisting(t *testing.T) {
	s := NewInMemoryStore()
	asset, _ := seedJob(t, s)

	again, created, err := s.EnsureMediaAsset(context.Background(), MediaAsset{
		ID: "other", ProfileID: "p1", ObjectKey: asset.ObjectKey, MIMEType: "text/plain",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a1", again.ID)

	_, _, err = s.EnsureMediaAsset(context.Background(), MediaAsset{ObjectKey: "x"})
	require.ErrorIs(t, err, ErrMissingProfile)
}

func TestClaimAndFinishJob(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_, job := seedJob(t, s)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	next, err := s.NextQueuedJob(ctx, JobTypeExtract)
	require.NoError(t, err)
	assert.Equal(t, job.ID, next.ID)

	ok, err := s.ClaimJob(ctx, job.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	claimed, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempt)
	require.NotNil(t, claimed.StartedAt)
	assert.Equal(t, now, *claimed.StartedAt)

	ok, err = s.ClaimJob(ctx, job.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "running job must not be claimed again")

	_, err = s.NextQueuedJob(ctx, JobTypeExtract)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.FinishJob(ctx, job.ID, JobStatusFailed, "Missing media asset", now.Add(time.Second)))
	finished, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, finished.Status)
	require.NotNil(t, finished.ErrorDetail)
	assert.Equal(t, "Missing media asset", *finished.ErrorDetail)
	require.NotNil(t, finished.FinishedAt)
	assert.True(t, finished.Terminal())

	ok, err = s.ClaimJob(ctx, job.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "terminal job must not be claimed")

	require.ErrorIs(t, s.FinishJob(ctx, job.ID, JobStatusDone, "", now), ErrJobNotRunning)
	require.ErrorIs(t, s.FinishJob(ctx, 999, JobStatusDone, "", now), ErrNotFound)
}

func TestConcurrentClaimHasSingleWinner(t *testing.T) {
	s := NewInMemoryStore()
	_, job := seedJob(t, s)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimJob(context.Background(), job.ID, time.Now())
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempt)
}

func TestNextQueuedJobPicksLowestID(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_, first := seedJob(t, s)
	asset2, _, err := s.EnsureMediaAsset(ctx, MediaAsset{ID: "a2", ProfileID: "p1", ObjectKey: "k2", MIMEType: "text/plain"})
	require.NoError(t, err)
	second, _, err := s.EnsureJob(ctx, Job{ProfileID: "p1", MediaAssetID: asset2.ID})
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)

	next, err := s.NextQueuedJob(ctx, JobTypeExtract)
	require.NoError(t, err)
	assert.Equal(t, first.ID, next.ID)

	jobs, err := s.ListJobs(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
}

func TestUpdateMemoryUnits(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	asset, _ := seedJob(t, s)
	_, err := s.InsertMemoryUnits(ctx, []MemoryUnit{
		{ProfileID: "p1", MediaAssetID: asset.ID, Title: "Moving to London", EventType: "MovingMigration"},
	})
	require.NoError(t, err)

	_, err = s.UpdateMemoryUnits(ctx, asset.ID, MemoryUnitPatch{})
	require.ErrorIs(t, err, ErrEmptyPatch)

	title := "Arriving in London"
	places := []string{"London"}
	updated, err := s.UpdateMemoryUnits(ctx, asset.ID, MemoryUnitPatch{Title: &title, Places: &places})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, title, updated[0].Title)
	assert.Equal(t, []string{"London"}, updated[0].Places)

	places[0] = "Paris"
	units, err := s.ListMemoryUnits(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"London"}, units[0].Places)
}

func TestSearchAndProfileKeywords(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	asset, _ := seedJob(t, s)
	desc := "She took the boat train from Dover."
	_, err := s.InsertMemoryUnits(ctx, []MemoryUnit{
		{ProfileID: "p1", MediaAssetID: asset.ID, Title: "Moving to London", Summary: "Emigrated in 1962",
			Description: &desc, EventType: "MovingMigration", Keywords: []string{"London", "Emigration"}},
		{ProfileID: "p1", MediaAssetID: asset.ID, Title: "Our wedding", Summary: "A June wedding",
			EventType: "Marriage", Keywords: []string{"wedding", "london"}},
		{ProfileID: "p2", MediaAssetID: "elsewhere", Title: "London again", Keywords: []string{"London"}},
	})
	require.NoError(t, err)

	keywords, err := s.ProfileKeywords(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"London", "Emigration", "wedding"}, keywords)

	hits, err := s.SearchMemoryUnits(ctx, "p1", SearchQuery{Keywords: []string{"dover"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Moving to London", hits[0].Unit.Title)
	assert.Equal(t, asset.ObjectKey, hits[0].AssetKey)
	assert.Equal(t, "text/plain", hits[0].AssetMIMEType)

	hits, err = s.SearchMemoryUnits(ctx, "p1", SearchQuery{EventTypes: []string{"marriage"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Our wedding", hits[0].Unit.Title)

	hits, err = s.SearchMemoryUnits(ctx, "p1", SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.SearchMemoryUnits(ctx, "p1", SearchQuery{Keywords: []string{"zebra"}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
