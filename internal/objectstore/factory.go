package objectstore

import "strings"

// NewStore returns an S3 store when a bucket is configured, otherwise an in-memory one.
func NewStore(cfg S3Config) (Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return NewInMemoryStore(""), nil
	}
	return NewS3Store(cfg)
}
