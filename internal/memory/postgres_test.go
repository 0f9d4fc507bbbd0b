package memory

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a disposable database named by TEST_DATABASE_URL.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := NewPostgresStore(ctx, dsn, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresJobLifecycle(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	pid := "p-" + uuid.NewString()

	_, err := s.CreateProfile(ctx, Profile{ID: pid, Name: pid})
	require.NoError(t, err)
	asset, created, err := s.EnsureMediaAsset(ctx, MediaAsset{
		ID: uuid.NewString(), ProfileID: pid, ObjectKey: "profiles/" + pid + "/story.txt", MIMEType: "text/plain", Bytes: 3,
	})
	require.NoError(t, err)
	require.True(t, created)

	job, created, err := s.EnsureJob(ctx, Job{ProfileID: pid, MediaAssetID: asset.ID})
	require.NoError(t, err)
	require.True(t, created)
	again, created, err := s.EnsureJob(ctx, Job{ProfileID: pid, MediaAssetID: asset.ID})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, job.ID, again.ID)

	ok, err := s.ClaimJob(ctx, job.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.ClaimJob(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.FinishJob(ctx, job.ID, JobStatusDone, "", time.Now()))
	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusDone, got.Status)
	assert.Equal(t, 1, got.Attempt)
	assert.Nil(t, got.ErrorDetail)
	require.ErrorIs(t, s.FinishJob(ctx, job.ID, JobStatusFailed, "late", time.Now()), ErrJobNotRunning)
}

func TestPostgresSearch(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()
	pid := "p-" + uuid.NewString()

	_, err := s.CreateProfile(ctx, Profile{ID: pid})
	require.NoError(t, err)
	asset, _, err := s.EnsureMediaAsset(ctx, MediaAsset{
		ID: uuid.NewString(), ProfileID: pid, ObjectKey: "profiles/" + pid + "/letter.txt", MIMEType: "text/plain",
	})
	require.NoError(t, err)
	_, err = s.InsertMemoryUnits(ctx, []MemoryUnit{
		{ProfileID: pid, MediaAssetID: asset.ID, Title: "Moving to London", Summary: "100% sure it rained",
			EventType: "MovingMigration", Places: []string{"London"}, Dates: []string{"1962"}, Keywords: []string{"London"}},
	})
	require.NoError(t, err)

	kw, err := s.ProfileKeywords(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, []string{"London"}, kw)

	hits, err := s.SearchMemoryUnits(ctx, pid, SearchQuery{Keywords: []string{"london"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, asset.ObjectKey, hits[0].AssetKey)

	hits, err = s.SearchMemoryUnits(ctx, pid, SearchQuery{Keywords: []string{"100%"}})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.SearchMemoryUnits(ctx, pid, SearchQuery{Keywords: []string{"%"}, EventTypes: []string{"wedding"}})
	require.NoError(t, err)
	assert.Len(t, hits, 1, "an escaped percent sign matches literally")
}
