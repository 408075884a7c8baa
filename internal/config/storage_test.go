package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadStorageConfig_Defaults(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "http://minio:9000/")
	t.Setenv("S3_PUBLIC_URL", "")
	t.Setenv("SIGNED_URL_TTL", "")

	cfg := LoadStorageConfig()

	assert.Equal(t, "s3", cfg.Driver)
	assert.Equal(t, "orchid-test", cfg.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.PublicURL)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, int64(5<<20), cfg.MaxImageSize)
}

func TestLoadStorageConfig_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("SIGNED_URL_TTL", "10m")
	t.Setenv("MAX_IMAGE_BYTES", "1024")
	t.Setenv("S3_PUBLIC_URL", "https://cdn.example.com/")

	cfg := LoadStorageConfig()

	assert.Equal(t, "memory", cfg.Driver)
	assert.Equal(t, 10*time.Minute, cfg.SignedURLTTL)
	assert.Equal(t, int64(1024), cfg.MaxImageSize)
	assert.Equal(t, "https://cdn.example.com", cfg.PublicURL)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 5*time.Second, cfg.TTL)
}
