package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/smithy-go"

	"splicer/internal/logging"
	"splicer/internal/services"
)

const (
	defaultUploadAttempts = 3
	initialUploadBackoff  = 500 * time.Millisecond
	maxUploadBackoff      = 8 * time.Second
)

// permanentCodes are S3 error codes that another attempt cannot fix.
var permanentCodes = map[string]struct{}{
	"AccessDenied":       {},
	"NoSuchBucket":       {},
	"InvalidAccessKeyId": {},
	"InvalidBucketName":  {},
}

// Retrying retries failed uploads with exponential backoff. Only Put is
// retried; the artifact bytes are already produced, so no codec work repeats.
type Retrying struct {
	next     Uploader
	attempts int
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewRetrying wraps next. attempts <= 0 uses the default.
func NewRetrying(next Uploader, attempts int, logger *slog.Logger) *Retrying {
	if attempts <= 0 {
		attempts = defaultUploadAttempts
	}
	return &Retrying{
		next:     next,
		attempts: attempts,
		logger:   logging.NewComponentLogger(logger, "storage"),
		sleep:    sleepContext,
	}
}

// Unwrap returns the wrapped backend.
func (r *Retrying) Unwrap() Uploader { return r.next }

func (r *Retrying) URL(key string) string { return r.next.URL(key) }

func (r *Retrying) Get(ctx context.Context, key string) ([]byte, error) {
	return r.next.Get(ctx, key)
}

func (r *Retrying) DeletePrefix(ctx context.Context, prefix string) error {
	return r.next.DeletePrefix(ctx, prefix)
}

// PresignGet delegates to the backend when it supports presigning.
func (r *Retrying) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigner, ok := r.next.(Presigner)
	if !ok {
		return r.next.URL(key), nil
	}
	return presigner.PresignGet(ctx, key, ttl)
}

// Put uploads data, retrying transient failures. The returned error wraps
// services.ErrUploadFailed.
func (r *Retrying) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	backoff := initialUploadBackoff
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		url, err := r.next.Put(ctx, key, data, contentType)
		if err == nil {
			return url, nil
		}
		lastErr = err
		if !retryableUpload(err) || attempt == r.attempts {
			break
		}
		logger := logging.WithContext(ctx, r.logger)
		logger.Info("upload attempt failed; retrying",
			logging.String("key", key),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", backoff),
			logging.Error(err),
		)
		if err := r.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff *= 2
		if backoff > maxUploadBackoff {
			backoff = maxUploadBackoff
		}
	}
	return "", services.Wrap(services.ErrUploadFailed, "upload", "put", key, lastErr)
}

func retryableUpload(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrInvalidKey) {
		return false
	}
	if errors.Is(err, services.ErrConfiguration) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, permanent := permanentCodes[apiErr.ErrorCode()]; permanent {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
