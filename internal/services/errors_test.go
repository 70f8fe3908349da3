package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"splicer/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrCodecExecution, "stitch", "concat", "exit status 1", base)
	if !errors.Is(err, services.ErrCodecExecution) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"codec execution failed", "stitch", "concat", "exit status 1", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "", "", "", nil)
	if err.Error() != "validation error: service failure" {
		t.Fatalf("unexpected message: %q", err)
	}
}

func TestRetryable(t *testing.T) {
	if !services.Retryable(services.Wrap(services.ErrUploadFailed, "upload", "put", "", nil)) {
		t.Fatal("upload failures should be retryable")
	}
	if !services.Retryable(fmt.Errorf("outer: %w", services.ErrCodecExecution)) {
		t.Fatal("codec failures should be retryable")
	}
	if services.Retryable(services.ErrAdmissionRejected) {
		t.Fatal("admission rejections must not be retried")
	}
	if services.Retryable(services.ErrSandboxUnavailable) {
		t.Fatal("sandbox unavailability routes to fallback, not retry")
	}
}

func TestClass(t *testing.T) {
	cases := map[error]string{
		services.ErrAdmissionRejected:  "admission_rejected",
		services.ErrSandboxUnavailable: "sandbox_unavailable",
		services.ErrPollTimeout:        "poll_timeout",
		services.ErrJobFailed:          "job_failed",
		errors.New("other"):            "internal",
	}
	for err, want := range cases {
		if got := services.Class(fmt.Errorf("wrapped: %w", err)); got != want {
			t.Fatalf("Class(%v) = %q, want %q", err, got, want)
		}
	}
	if services.Class(nil) != "" {
		t.Fatal("expected empty class for nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		services.ErrAdmissionRejected:  422,
		services.ErrValidation:         400,
		services.ErrNotFound:           404,
		services.ErrSandboxUnavailable: 503,
		errors.New("other"):            500,
	}
	for err, want := range cases {
		if got := services.HTTPStatus(fmt.Errorf("wrapped: %w", err)); got != want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
