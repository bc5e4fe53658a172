package storage

import (
	"context"
	"io"
	"time"
)

// Store abstracts evidence blob storage so the service layer does not care
// whether files land on local disk or in an S3 bucket.
type Store interface {
	// Put writes the object under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get opens the object for reading. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// PresignURL returns a time-limited download URL, or "" when the backend
	// cannot presign (local disk) and the caller should stream via Get.
	PresignURL(ctx context.Context, key string, expire time.Duration) (string, error)
}
