// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider (MinIO, AWS S3).
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound indicates the requested object does not exist in the bucket.
var ErrNotFound = errors.New("storage: object not found")

// ErrConfiguration indicates the bucket or credentials are misconfigured
// (missing bucket, bad access key, signature mismatch). Callers surface it
// with a generic message; the underlying detail stays in server logs.
var ErrConfiguration = errors.New("storage: configuration error")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	UserMetadata map[string]string
}

// Store is the interface for uploading and inspecting objects.
type Store interface {
	// Put streams data to the store under the given key with the declared
	// content type and descriptive metadata, returning the object's public URL.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (string, error)
	// Stat returns the metadata of a stored object, or ErrNotFound.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// List returns up to maxKeys objects under prefix.
	List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error)
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}
