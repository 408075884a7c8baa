// Package storage is the object store gateway for product images.
//
// Two drivers exist:
//   - "s3"     — S3-compatible object storage (AWS S3, MinIO)
//   - "memory" — process-local map, for tests and local runs
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iliyamo/product-catalog/internal/config"
)

// ErrNotFound is returned by Exists-style lookups for a missing object.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the set of bucket operations the catalog needs.
type ObjectStore interface {
	// Put writes size bytes from body under key.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Remove deletes key.  Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// PresignGet returns a time-limited GET URL for key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// URL returns the public base form of key, the value persisted as
	// image_url.  It is not fetchable without a signature.
	URL(key string) string
}

// New builds the driver selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "s3":
		return NewS3(ctx, cfg)
	case "memory":
		return NewMemory(cfg.PublicURL, cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

func publicURL(base, bucket, key string) string {
	base = strings.TrimRight(base, "/")
	return base + "/" + bucket + "/" + strings.TrimLeft(key, "/")
}
