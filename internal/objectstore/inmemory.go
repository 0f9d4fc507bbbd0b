package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
}

// InMemoryStore keeps objects in process memory. Presigned URLs are descriptive only.
type InMemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memObject
	deleted []string
}

func NewInMemoryStore(bucket string) *InMemoryStore {
	if bucket == "" {
		bucket = "heirloom-local"
	}
	return &InMemoryStore{bucket: bucket, objects: make(map[string]memObject)}
}

// Put stores an object, standing in for a client upload to a presigned URL.
func (s *InMemoryStore) Put(key, contentType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: append([]byte(nil), data...), contentType: contentType}
}

// Deleted lists keys removed through Delete, oldest first.
func (s *InMemoryStore) Deleted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.deleted...)
}

func (s *InMemoryStore) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	q := url.Values{}
	q.Set("method", "PUT")
	q.Set("content_type", contentType)
	q.Set("expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	return "memory://" + s.bucket + "/" + key + "?" + q.Encode(), nil
}

func (s *InMemoryStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "memory://" + s.bucket + "/" + key + "?expires=" + fmt.Sprintf("%d", int(ttl.Seconds())), nil
}

func (s *InMemoryStore) Head(_ context.Context, key string) (ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

func (s *InMemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	data, err := s.Download(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	info, err := s.Head(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (s *InMemoryStore) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *InMemoryStore) DownloadToFile(ctx context.Context, key, path string) error {
	data, err := s.Download(ctx, key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *InMemoryStore) PublicURL(key string) string {
	return PublicURL("", s.bucket, "", key)
}

func (s *InMemoryStore) Bucket() string { return s.bucket }

func (s *InMemoryStore) Endpoint() string { return "" }
