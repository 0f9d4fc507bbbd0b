package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		region   string
		want     string
	}{
		{"custom endpoint", "http://localhost:9000/", "us-east-1", "http://localhost:9000/media/profiles/p1/a.txt"},
		{"regional", "", "eu-west-2", "https://media.s3.eu-west-2.amazonaws.com/profiles/p1/a.txt"},
		{"global", "", "", "https://media.s3.amazonaws.com/profiles/p1/a.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PublicURL(tc.endpoint, "media", tc.region, "profiles/p1/a.txt"))
		})
	}
}

func TestResolveEndpoint(t *testing.T) {
	host, secure, err := resolveEndpoint("http://minio:9000", "")
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", host)
	assert.False(t, secure)

	host, secure, err = resolveEndpoint("", "us-west-2")
	require.NoError(t, err)
	assert.Equal(t, "s3.us-west-2.amazonaws.com", host)
	assert.True(t, secure)

	_, _, err = resolveEndpoint("not a url", "")
	require.Error(t, err)
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore("bucket")
	s.Put("k", "text/plain", []byte("hello"))

	info, err := s.Head(ctx, "k")
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size)
	assert.Equal(t, "text/plain", info.ContentType)

	path := filepath.Join(t.TempDir(), "k.txt")
	require.NoError(t, s.DownloadToFile(ctx, "k", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	putURL, err := s.PresignPut(ctx, "k", "text/plain", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(putURL, "memory://bucket/k?"))
	assert.Contains(t, putURL, "expires=3600")

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Head(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"k"}, s.Deleted())
}
