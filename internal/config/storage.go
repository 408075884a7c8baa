package config

import (
	"strings"
	"time"
)

// StorageConfig describes the object store holding product images.
//
//	STORAGE_DRIVER  – "s3" (default) or "memory" for local runs without MinIO
//	S3_ENDPOINT     – MinIO / S3-compatible endpoint; empty means AWS
//	S3_REGION       – signing region (default us-east-1)
//	S3_KEY/S3_SECRET – static credentials
//	S3_BUCKET       – bucket name (default orchid-test)
//	S3_PUBLIC_URL   – base of the persisted image_url form; defaults to the endpoint
//	SIGNED_URL_TTL  – lifetime of presigned GET URLs (default 1h)
//	MAX_IMAGE_BYTES – per-file upload limit (default 5 MiB)
type StorageConfig struct {
	Driver       string
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	PublicURL    string
	SignedURLTTL time.Duration
	MaxImageSize int64
}

func LoadStorageConfig() StorageConfig {
	cfg := StorageConfig{
		Driver:       strings.ToLower(envStr("STORAGE_DRIVER", "s3")),
		Endpoint:     envStr("S3_ENDPOINT", ""),
		Region:       envStr("S3_REGION", "us-east-1"),
		AccessKey:    envStr("S3_KEY", ""),
		SecretKey:    envStr("S3_SECRET", ""),
		Bucket:       envStr("S3_BUCKET", "orchid-test"),
		PublicURL:    strings.TrimRight(envStr("S3_PUBLIC_URL", ""), "/"),
		SignedURLTTL: envDur("SIGNED_URL_TTL", time.Hour),
		MaxImageSize: envInt64("MAX_IMAGE_BYTES", 5<<20),
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	return cfg
}
