// Package storage provides blob storage drivers for post images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"socialapp/internal/config"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob not found")

// ErrInvalidKey is returned for keys that could escape the bucket or directory.
var ErrInvalidKey = errors.New("invalid blob key")

// Blob is a stored object.
type Blob struct {
	Data        []byte
	ContentType string
}

// BlobStore stores opaque image payloads by key. Delete of a missing key
// succeeds.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*Blob, error)
	Delete(ctx context.Context, key string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)

// ValidateKey rejects empty keys, absolute paths and parent references.
func ValidateKey(key string) error {
	if key == "" || len(key) > 512 || !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// New builds the driver selected by BLOB_DRIVER.
func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.BlobDriver {
	case "s3":
		return NewS3Store(S3Options{
			Region:    cfg.BlobRegion,
			Bucket:    cfg.BlobBucket,
			Endpoint:  cfg.BlobEndpoint,
			AccessKey: cfg.BlobAccessKey,
			SecretKey: cfg.BlobSecretKey,
		})
	case "gcs":
		return NewGCSStore(ctx, cfg.BlobBucket, cfg.GCSCredentialsFile)
	case "local", "":
		return NewLocalStore(cfg.BlobLocalDir)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}
