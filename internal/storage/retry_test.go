package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"splicer/internal/services"
)

func newTestRetrying(next Uploader, attempts int) (*Retrying, *[]time.Duration) {
	var waits []time.Duration
	r := NewRetrying(next, attempts, nil)
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return r, &waits
}

func TestRetryingRecoversFromTransientFailures(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = []error{errors.New("connection reset"), fakeAPIError{code: "SlowDown"}}
	store := newS3StoreWithClient(S3Options{Bucket: "media"}, fake, nil)
	r, waits := newTestRetrying(store, 3)

	if _, err := r.Put(context.Background(), "stitched-videos/j/final.mp4", []byte("mp4"), "video/mp4"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if fake.puts != 3 {
		t.Fatalf("expected 3 attempts, got %d", fake.puts)
	}
	if len(*waits) != 2 || (*waits)[0] != initialUploadBackoff || (*waits)[1] != 2*initialUploadBackoff {
		t.Fatalf("unexpected backoff schedule: %v", *waits)
	}
}

func TestRetryingStopsOnPermanentCodes(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = []error{fakeAPIError{code: "AccessDenied"}}
	store := newS3StoreWithClient(S3Options{Bucket: "media"}, fake, nil)
	r, waits := newTestRetrying(store, 5)

	_, err := r.Put(context.Background(), "stitched-videos/j/final.mp4", []byte("mp4"), "video/mp4")
	if !errors.Is(err, services.ErrUploadFailed) {
		t.Fatalf("expected upload failure marker, got %v", err)
	}
	if fake.puts != 1 || len(*waits) != 0 {
		t.Fatalf("expected a single attempt, got puts=%d waits=%v", fake.puts, *waits)
	}
}

func TestRetryingGivesUpAfterAttempts(t *testing.T) {
	fake := newFakeS3()
	boom := errors.New("boom")
	fake.putErr = []error{boom, boom, boom, boom}
	store := newS3StoreWithClient(S3Options{Bucket: "media"}, fake, nil)
	r, _ := newTestRetrying(store, 2)

	_, err := r.Put(context.Background(), "a/b", []byte("x"), "")
	if !errors.Is(err, services.ErrUploadFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if fake.puts != 2 {
		t.Fatalf("expected 2 attempts, got %d", fake.puts)
	}
}

func TestRetryingPresignFallsBackToURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost/artifacts")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	r := NewRetrying(store, 1, nil)
	url, err := r.PresignGet(context.Background(), "a/b.mp4", time.Minute)
	if err != nil || url != "http://localhost/artifacts/a/b.mp4" {
		t.Fatalf("PresignGet = %q, %v", url, err)
	}
}
