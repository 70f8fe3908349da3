package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"splicer/internal/api"
	"splicer/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Server", statusError, "unreachable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Server:", "[ERROR] unreachable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Server", statusOK, "ok", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestServerLines(t *testing.T) {
	lines := serverLines("http://x", errors.New("refused"), api.Capabilities{}, nil, false)
	if len(lines) != 1 || !strings.Contains(lines[0], "[ERROR] http://x unreachable") {
		t.Fatalf("unexpected unreachable lines %q", lines)
	}

	lines = serverLines("http://x", nil, api.Capabilities{FullPipeline: true, Backend: "local"}, nil, false)
	if len(lines) != 2 || !strings.Contains(lines[1], "[OK] available (local)") {
		t.Fatalf("unexpected capable lines %q", lines)
	}

	lines = serverLines("http://x", nil, api.Capabilities{Detail: "ffmpeg missing"}, nil, false)
	if !strings.Contains(lines[1], "[WARN] unavailable (ffmpeg missing)") {
		t.Fatalf("unexpected degraded line %q", lines[1])
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "FFmpeg", Passed: true, Detail: "/usr/bin/ffmpeg"},
		{Name: "Sandbox workspace", Detail: "does not exist"},
	}, false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] /usr/bin/ffmpeg") || !strings.Contains(lines[1], "[ERROR] does not exist") {
		t.Fatalf("unexpected lines %q", lines)
	}
}
