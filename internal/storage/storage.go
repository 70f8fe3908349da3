package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"splicer/internal/config"
)

// Uploader persists finished artifacts and returns their public URLs.
type Uploader interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	DeletePrefix(ctx context.Context, prefix string) error
	URL(key string) string
}

// Presigner is implemented by backends that can mint time-limited download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Open builds the configured backend wrapped with upload retries.
func Open(cfg *config.Config, logger *slog.Logger) (Uploader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage: config is required")
	}
	var backend Uploader
	switch cfg.Storage.Backend {
	case config.StorageBackendFilesystem:
		store, err := NewFileStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		backend = store
	case config.StorageBackendS3:
		backend = NewS3Store(S3Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.Storage.Backend)
	}
	return NewRetrying(backend, cfg.Storage.UploadAttempts, logger), nil
}
