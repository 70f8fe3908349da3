package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"splicer/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory: the job
// database, artifact store and sandbox workspace all live under it, the API
// binds an ephemeral port and codec retries do not back off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Store.Path = filepath.Join(base, "db", "jobs.db")
	cfg.Storage.Dir = filepath.Join(base, "artifacts")
	cfg.Storage.PublicBaseURL = "http://127.0.0.1:7600/artifacts"
	cfg.Sandbox.WorkspaceDir = filepath.Join(base, "sandbox")
	cfg.Sandbox.CodecRetryBackoffSeconds = 0
	cfg.Notifications.NtfyTopic = ""
	cfg.Logging.Dir = ""

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithAPIToken requires token on the server and sends it from the client.
func WithAPIToken(token string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Server.APIToken = token
		cfg.Client.APIToken = token
	}
}

// WithStubbedBinaries puts no-op executables for names (default ffmpeg)
// first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, cfg *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
