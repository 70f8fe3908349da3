package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splicer/internal/api"
	"splicer/internal/poller"
	"splicer/internal/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "splicer.toml")

	out, err := runCLI(t, "config", "init", "--path", path)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %s", out)
	}
	if _, err := runCLI(t, "config", "init", "--path", path); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}

	out, err = runCLI(t, "--config", path, "config", "validate")
	if err != nil {
		t.Fatalf("config validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, path) {
		t.Fatalf("unexpected validate output: %s", out)
	}
}

func TestStitchCommandFollowsPreviewJob(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("segment:" + strings.TrimPrefix(r.URL.Path, "/")))
	}))
	defer media.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Sandbox.FFmpegBinary = "splicer-test-no-such-ffmpeg"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, cfg, func(addr string) { addrCh <- addr })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}
	apiURL := "http://" + addr

	dir := t.TempDir()
	configPath := filepath.Join(dir, "client.toml")
	if err := os.WriteFile(configPath, []byte("[poller]\ninterval_seconds = 1\n"), 0o644); err != nil {
		t.Fatalf("write client config: %v", err)
	}
	segmentsPath := filepath.Join(dir, "segments.yaml")
	segments := fmt.Sprintf(`segments:
  - index: 1
    url: %[1]s/seg-1.mp4
    durationMs: 5000
    startTimeMs: 5000
    endTimeMs: 10000
  - index: 0
    url: %[1]s/seg-0.mp4
    durationMs: 5000
    startTimeMs: 0
    endTimeMs: 5000
`, media.URL)
	if err := os.WriteFile(segmentsPath, []byte(segments), 0o644); err != nil {
		t.Fatalf("write segments: %v", err)
	}

	out, err := runCLI(t, "--config", configPath, "--api-url", apiURL, "stitch", "--segments", segmentsPath)
	if err != nil {
		t.Fatalf("stitch failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Submitted stitch job", "Result: ", "preview.mp4", "Preview only"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	jobID := submittedID(t, out)

	out, err = runCLI(t, "--config", configPath, "--api-url", apiURL, "job", "show", jobID, "--json")
	if err != nil {
		t.Fatalf("job show failed: %v\n%s", err, out)
	}
	var job api.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode job json: %v\n%s", err, out)
	}
	if job.Status != "completed" || !job.Preview || job.Progress != 100 {
		t.Fatalf("unexpected job %+v", job)
	}

	out, err = runCLI(t, "--config", configPath, "--api-url", apiURL, "job", "list")
	if err != nil {
		t.Fatalf("job list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, jobID) || !strings.Contains(out, "Completed") {
		t.Fatalf("unexpected job list:\n%s", out)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Storage.Dir, "stitched-videos", jobID, "preview.mp4"))
	if err != nil {
		t.Fatalf("read preview artifact: %v", err)
	}
	if string(data) != "segment:seg-0.mp4" {
		t.Fatalf("expected first segment bytes, got %q", data)
	}
}

func TestStatusLocalSkipsServer(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "missing.toml")

	out, err := runCLI(t, "--config", configPath, "status", "--local")
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, out)
	}
	if strings.Contains(out, "== Server ==") {
		t.Fatalf("expected server section to be skipped:\n%s", out)
	}
	if !strings.Contains(out, "== Local checks ==") || !strings.Contains(out, "Artifact directory") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func submittedID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "Submitted stitch job "); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("no job id in output:\n%s", out)
	return ""
}

func TestTestNotifyCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SPLICER_NTFY_TOPIC", "")
	var titles []string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles = append(titles, r.Header.Get("Title"))
		w.WriteHeader(http.StatusOK)
	}))
	defer ntfy.Close()

	base := t.TempDir()
	missing := filepath.Join(base, "missing.toml")
	if out, err := runCLI(t, "--config", missing, "test-notify"); err == nil {
		t.Fatalf("expected error without topic, got output:\n%s", out)
	}

	configPath := filepath.Join(base, "notify.toml")
	body := fmt.Sprintf("[notifications]\nntfy_topic = %q\n", ntfy.URL+"/splicer")
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out, err := runCLI(t, "--config", configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Test notification sent") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if len(titles) != 1 || titles[0] != "Splicer - Test" {
		t.Fatalf("unexpected ntfy requests: %v", titles)
	}
}

func TestExitCodeDistinguishesJobOutcomes(t *testing.T) {
	failed := fmt.Errorf("job j1 failed: %w", &poller.JobFailedError{JobID: "j1", Message: "codec error"})
	if got := exitCode(failed); got != exitJobFailed {
		t.Fatalf("exitCode(job failed) = %d, want %d", got, exitJobFailed)
	}
	if got := exitCode(&poller.TimeoutError{JobID: "j1", Attempts: 3}); got != exitPollExpiry {
		t.Fatalf("exitCode(timeout) = %d, want %d", got, exitPollExpiry)
	}
	if got := exitCode(errors.New("boom")); got != exitError {
		t.Fatalf("exitCode(other) = %d, want %d", got, exitError)
	}
}
