// Package upload implements the request-admission and validation pipeline for
// file uploads: rate limiting, size/type validation, safe key generation, and
// the orchestration of a single put to the object store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/filedrop/service/internal/ratelimit"
	"github.com/filedrop/service/internal/storage"
)

// Pipeline failure modes surfaced to the transport layer.
var (
	ErrMissingFile     = errors.New("no file provided")
	ErrMultipleFiles   = errors.New("only one file allowed")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("file type not supported")
)

// keyPrefix namespaces every generated object key within the bucket.
const keyPrefix = "uploads/"

// listPageSize caps the number of entries returned by ListRecent.
const listPageSize = 20

// Request carries one upload through the pipeline. The payload reader has
// already been bounded by the transport layer; Size is its exact byte count.
type Request struct {
	ClientID     string
	OriginalName string
	MimeType     string
	Size         int64
	Data         io.Reader
}

// Metadata describes an accepted upload and is echoed back to the caller and
// attached to the stored object.
type Metadata struct {
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
	UploadedBy   string    `json:"uploadedBy"`
}

// StoredObject is the outcome of a successful upload.
type StoredObject struct {
	Key      string
	URL      string
	Metadata Metadata
}

// FileInfo is the head-metadata view of a previously stored object.
type FileInfo struct {
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	LastModified time.Time `json:"lastModified"`
	OriginalName string    `json:"originalName"`
	UploadedAt   string    `json:"uploadedAt"`
}

// FileEntry is one row of the recent-uploads listing.
type FileEntry struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	URL          string    `json:"url"`
}

// Service orchestrates the upload pipeline over the storage collaborator.
type Service struct {
	store   storage.Store
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

// NewService creates an upload Service.
func NewService(store storage.Store, limiter *ratelimit.Limiter, logger zerolog.Logger) *Service {
	return &Service{store: store, limiter: limiter, logger: logger}
}

// Admit reports whether a request from clientID may proceed. It must be called
// before the request body is parsed; an admission is consumed regardless of
// what happens to the request afterwards.
func (s *Service) Admit(clientID string) bool {
	return s.limiter.Admit(clientID)
}

// Store validates the upload, derives a storage key, and issues a single put
// to the object store. Validation failures return before any storage I/O.
// Storage failures are not retried; the wrapped error is surfaced as-is.
func (s *Service) Store(ctx context.Context, req Request) (*StoredObject, error) {
	verdict := Validate(req.MimeType, req.Size)
	if !verdict.Accepted {
		switch verdict.Reason {
		case ReasonOversize:
			return nil, fmt.Errorf("%w: %s exceeds the %s limit",
				ErrFileTooLarge, humanize.IBytes(uint64(req.Size)), humanize.IBytes(MaxFileSize))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, req.MimeType)
		}
	}

	meta := Metadata{
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		Size:         req.Size,
		UploadedAt:   time.Now().UTC(),
		UploadedBy:   "anonymous", // placeholder until an identity model exists
	}

	key := keyPrefix + GenerateKey(req.OriginalName)

	url, err := s.store.Put(ctx, key, req.Data, req.Size, req.MimeType, map[string]string{
		"originalName": meta.OriginalName,
		"uploadedAt":   meta.UploadedAt.Format(time.RFC3339),
		"uploadedBy":   meta.UploadedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	s.logger.Info().
		Str("key", key).
		Str("type", req.MimeType).
		Str("size", humanize.IBytes(uint64(req.Size))).
		Msg("file uploaded")

	return &StoredObject{Key: key, URL: url, Metadata: meta}, nil
}

// FileMetadata returns the stored metadata for key, or storage.ErrNotFound.
func (s *Service) FileMetadata(ctx context.Context, key string) (*FileInfo, error) {
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, err
	}

	// User metadata keys come back lowercased from the storage layer.
	originalName := info.UserMetadata["originalname"]
	if originalName == "" {
		originalName = "Unknown"
	}
	uploadedAt := info.UserMetadata["uploadedat"]
	if uploadedAt == "" {
		uploadedAt = info.LastModified.Format(time.RFC3339)
	}

	return &FileInfo{
		Size:         info.Size,
		Type:         info.ContentType,
		LastModified: info.LastModified,
		OriginalName: originalName,
		UploadedAt:   uploadedAt,
	}, nil
}

// ListRecent returns the most recently stored uploads, newest first, capped at
// a fixed page size.
func (s *Service) ListRecent(ctx context.Context) ([]FileEntry, error) {
	objects, err := s.store.List(ctx, keyPrefix, listPageSize)
	if err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, FileEntry{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			URL:          s.store.PublicURL(obj.Key),
		})
	}
	return entries, nil
}
