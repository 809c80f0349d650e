package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioStore implements Store using a MinIO (or any S3-compatible) backend.
// To switch providers, change STORAGE_ENDPOINT and credentials — no code
// changes are needed for any S3-compatible service.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinioStore creates a MinIO client, ensures the bucket exists with a
// public-read policy, and returns a ready-to-use MinioStore.
func NewMinioStore(endpoint, accessKey, secretKey, bucket, publicBase string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Info().Str("bucket", bucket).Msg("created bucket")
	}

	if err := client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}

	return &MinioStore{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// Put streams reader to MinIO under key. size must be the exact byte count.
// Objects are cached aggressively and served inline under their original name.
func (s *MinioStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
		CacheControl: "max-age=31536000",
	}
	if name, ok := metadata["originalName"]; ok {
		opts.ContentDisposition = fmt.Sprintf("inline; filename=%q", name)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, opts)
	if err != nil {
		return "", translateErr(fmt.Errorf("put object %q: %w", key, err), err)
	}
	return s.PublicURL(key), nil
}

// Stat returns the stored object's metadata. User metadata keys are lowercased
// because S3 round-trips them through HTTP headers and loses the original case.
func (s *MinioStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, translateErr(fmt.Errorf("stat object %q: %w", key, err), err)
	}

	meta := make(map[string]string, len(info.UserMetadata))
	for k, v := range info.UserMetadata {
		meta[strings.ToLower(k)] = v
	}

	return &ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
		UserMetadata: meta,
	}, nil
}

// List returns up to maxKeys objects under prefix, most recently modified first.
func (s *MinioStore) List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	objects := make([]ObjectInfo, 0, maxKeys)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   maxKeys,
	}) {
		if obj.Err != nil {
			return nil, translateErr(fmt.Errorf("list objects under %q: %w", prefix, obj.Err), obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
		if len(objects) == maxKeys {
			break
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// PublicURL returns the browser-accessible URL for the given key.
func (s *MinioStore) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

// translateErr maps S3 error codes onto the package's sentinel errors so
// callers never depend on the MinIO SDK. wrapped carries the full context for
// logging; cause is the raw SDK error the code is read from.
func translateErr(wrapped, cause error) error {
	switch minio.ToErrorResponse(cause).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %w", ErrNotFound, wrapped)
	case "NoSuchBucket", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccessDenied":
		return fmt.Errorf("%w: %w", ErrConfiguration, wrapped)
	}
	return wrapped
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET
// on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
