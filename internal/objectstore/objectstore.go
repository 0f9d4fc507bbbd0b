// Package objectstore wraps the S3-compatible bucket that holds uploaded media.
package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var ErrNotFound = errors.New("object not found")

// ObjectInfo is the subset of object metadata the service reads.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is the object storage surface used by uploads, extraction and retrieval.
type Store interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Download(ctx context.Context, key string) ([]byte, error)
	DownloadToFile(ctx context.Context, key, path string) error
	Delete(ctx context.Context, key string) error
	// PublicURL builds the unsigned URL of an object.
	PublicURL(key string) string
	Bucket() string
	Endpoint() string
}

// PublicURL returns endpoint/bucket/key when an endpoint is configured, otherwise the
// virtual-hosted AWS form, regional when a region is known.
func PublicURL(endpoint, bucket, region, key string) string {
	key = strings.TrimLeft(key, "/")
	if endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/"); endpoint != "" {
		return endpoint + "/" + bucket + "/" + key
	}
	if region = strings.TrimSpace(region); region != "" {
		return "https://" + bucket + ".s3." + region + ".amazonaws.com/" + key
	}
	return "https://" + bucket + ".s3.amazonaws.com/" + key
}
