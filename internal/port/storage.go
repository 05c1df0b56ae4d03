package port

import (
	"context"
	"time"
)

// ArchiveObject is one rendered export placed in the archive bucket.
type ArchiveObject struct {
	Key         string
	Filename    string
	ContentType string
	Data        []byte
}

// ObjectStorage abstracts the bucket that holds archived exports. The bucket
// is fixed when the implementation is built, so callers deal in keys only.
type ObjectStorage interface {
	Put(ctx context.Context, obj ArchiveObject) (etag string, err error)
	// PresignGet returns a time-limited download URL that names the file
	// as obj.Filename when given.
	PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
	// DeleteKeys removes every key, ignoring keys that no longer exist.
	DeleteKeys(ctx context.Context, keys []string) error
}
