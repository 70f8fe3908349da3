package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"splicer/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndUsesEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SPLICER_API_TOKEN", "env-token")
	t.Setenv("SPLICER_NTFY_TOPIC", " https://ntfy.sh/splicer-jobs ")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStore := filepath.Join(tempHome, ".local", "share", "splicer", "jobs.db")
	if cfg.Store.Path != wantStore {
		t.Fatalf("unexpected store path: got %q want %q", cfg.Store.Path, wantStore)
	}
	if cfg.Server.APIToken != "env-token" {
		t.Fatalf("expected api token from env, got %q", cfg.Server.APIToken)
	}
	if cfg.Client.APIToken != "env-token" {
		t.Fatalf("expected client token to inherit server token, got %q", cfg.Client.APIToken)
	}
	if cfg.Storage.PublicBaseURL != "http://127.0.0.1:7600/artifacts" {
		t.Fatalf("unexpected public base url: %q", cfg.Storage.PublicBaseURL)
	}
	if cfg.Limits.MaxAudioSizeMB != 20 || cfg.Limits.MaxTotalSegments != 100 {
		t.Fatalf("unexpected limits: %+v", cfg.Limits)
	}
	if cfg.InitTimeout().Seconds() != 30 {
		t.Fatalf("unexpected init timeout: %s", cfg.InitTimeout())
	}
	if cfg.PollInterval().Seconds() != 2 || cfg.Poller.MaxAttempts != 60 {
		t.Fatalf("unexpected poller settings: %+v", cfg.Poller)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/splicer-jobs" || cfg.NotificationTimeout().Seconds() != 10 {
		t.Fatalf("unexpected notification settings: %+v", cfg.Notifications)
	}
}

func TestLoadReadsTOMLFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Server.Bind = "0.0.0.0:9000"
	cfg.Limits.MaxAudioSizeMB = 12.5
	cfg.Sandbox.Backend = config.SandboxBackendRemote
	cfg.Sandbox.RemoteURL = "https://sandbox.example.com/"
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q exists=%v", path, resolved, exists)
	}
	if loaded.Server.Bind != "0.0.0.0:9000" {
		t.Fatalf("unexpected bind: %q", loaded.Server.Bind)
	}
	if loaded.Limits.MaxAudioSizeMB != 12.5 {
		t.Fatalf("unexpected audio limit: %v", loaded.Limits.MaxAudioSizeMB)
	}
	if loaded.Sandbox.RemoteURL != "https://sandbox.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", loaded.Sandbox.RemoteURL)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[limits]\nmax_audio_mb = 4\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero segments", func(c *config.Config) { c.Limits.MaxTotalSegments = 0 }, "limits.max_total_segments"},
		{"unknown store", func(c *config.Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without dsn", func(c *config.Config) { c.Store.Driver = config.StoreDriverPostgres }, "store.dsn"},
		{"s3 without bucket", func(c *config.Config) { c.Storage.Backend = config.StorageBackendS3 }, "storage.bucket"},
		{"remote without url", func(c *config.Config) { c.Sandbox.Backend = config.SandboxBackendRemote }, "sandbox.remote_url"},
		{"opaque origin", func(c *config.Config) { c.Sandbox.Origin = "about:blank" }, "sandbox.origin"},
		{"inverted duration bounds", func(c *config.Config) { c.Limits.MinAudioDurationMs = 700_000 }, "limits.min_audio_duration_ms"},
		{"bad ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" }, "notifications.ntfy_topic"},
		{"zero ntfy timeout", func(c *config.Config) {
			c.Notifications.NtfyTopic = "https://ntfy.sh/topic"
			c.Notifications.RequestTimeoutSeconds = 0
		}, "notifications.request_timeout_seconds"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.Dir = t.TempDir()
			cfg.Storage.PublicBaseURL = "http://127.0.0.1:7600/artifacts"
			cfg.Store.Path = filepath.Join(t.TempDir(), "jobs.db")
			cfg.Sandbox.WorkspaceDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Sandbox.Backend != config.SandboxBackendLocal {
		t.Fatalf("unexpected sandbox backend: %q", cfg.Sandbox.Backend)
	}
}

func TestEnsureDirectoriesCreatesWorkspaceAndStorage(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Sandbox.WorkspaceDir = filepath.Join(base, "sandbox")
	cfg.Storage.Dir = filepath.Join(base, "artifacts")
	cfg.Store.Path = filepath.Join(base, "db", "jobs.db")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Sandbox.WorkspaceDir, cfg.Storage.Dir, filepath.Dir(cfg.Store.Path)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}
