package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Dir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Logging.Dir, "splicer.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerPrefixesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "assembly").Info("stitch complete", logging.Int("segments", 10), logging.String("key", "a b"))

	line := buf.String()
	if !strings.Contains(line, "INFO assembly: stitch complete") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "segments=10") || !strings.Contains(line, `key="a b"`) {
		t.Fatalf("expected formatted attributes, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no source at info level, got %q", line)
	}
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("upload retry", logging.Error(errors.New("boom")), logging.Duration("backoff", 1500*time.Millisecond))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload["error"] != "boom" {
		t.Fatalf("expected error string, got %v", payload["error"])
	}
	if payload["backoff_ms"] != float64(1500) {
		t.Fatalf("expected backoff_ms=1500, got %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithStage(ctx, "stitch")
	ctx = services.WithRequestID(ctx, "req-9")

	logging.WithContext(ctx, logger).Info("working")

	line := buf.String()
	for _, want := range []string{"job_id=job-1", "stage=stitch", "correlation_id=req-9"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "fallback used", "fallback_preview", logging.String(logging.FieldImpact, "preview only"))

	line := buf.String()
	if !strings.Contains(line, "event_type=fallback_preview") {
		t.Fatalf("expected event type, got %q", line)
	}
	if !strings.Contains(line, `impact="preview only"`) {
		t.Fatalf("expected caller impact preserved, got %q", line)
	}
	if !strings.Contains(line, "error_hint=") {
		t.Fatalf("expected default error hint, got %q", line)
	}
}

func TestErrorWithContextAddsErrorClass(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	cause := services.Wrap(services.ErrUploadFailed, "storage", "put", "k", nil)
	logging.ErrorWithContext(logger, "upload failed", "upload_failed", logging.Error(cause))

	line := buf.String()
	for _, want := range []string{"event_type=upload_failed", "error_class=upload_failed", "error_hint="} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestProgressSamplerEmitsOnBucketAndStageChange(t *testing.T) {
	s := logging.NewProgressSampler(10)
	if !s.ShouldLog(0, "chunk") {
		t.Fatal("first update should log")
	}
	if s.ShouldLog(5, "chunk") {
		t.Fatal("same bucket should not log")
	}
	if !s.ShouldLog(12, "chunk") {
		t.Fatal("new bucket should log")
	}
	if !s.ShouldLog(12, "upload") {
		t.Fatal("stage change should log")
	}
	if s.ShouldLog(11, "upload") {
		t.Fatal("lower percent in same bucket should not log")
	}
	if !s.ShouldLog(100, "upload") {
		t.Fatal("completion should log")
	}

	var nilSampler *logging.ProgressSampler
	if !nilSampler.ShouldLog(50, "x") {
		t.Fatal("nil sampler should always log")
	}
}
