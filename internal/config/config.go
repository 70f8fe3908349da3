package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP API listener settings.
type Server struct {
	Bind                string `toml:"bind"`
	APIToken            string `toml:"api_token"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// Store selects and configures job-status persistence.
type Store struct {
	Driver string `toml:"driver"` // "sqlite" or "postgres"
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

// Storage configures where finished artifacts are uploaded.
type Storage struct {
	Backend           string `toml:"backend"` // "filesystem" or "s3"
	Dir               string `toml:"dir"`
	PublicBaseURL     string `toml:"public_base_url"`
	Bucket            string `toml:"bucket"`
	Region            string `toml:"region"`
	Endpoint          string `toml:"endpoint"`
	AccessKeyID       string `toml:"access_key_id"`
	SecretAccessKey   string `toml:"secret_access_key"`
	UploadAttempts    int    `toml:"upload_attempts"`
	PresignTTLSeconds int    `toml:"presign_ttl_seconds"`
}

// Sandbox configures the codec execution environment.
type Sandbox struct {
	Backend                  string `toml:"backend"` // "local" or "remote"
	FFmpegBinary             string `toml:"ffmpeg_binary"`
	WorkspaceDir             string `toml:"workspace_dir"`
	Origin                   string `toml:"origin"`
	RemoteURL                string `toml:"remote_url"`
	RemoteToken              string `toml:"remote_token"`
	CoreURL                  string `toml:"core_url"`
	InitTimeoutSeconds       int    `toml:"init_timeout_seconds"`
	ExecTimeoutSeconds       int    `toml:"exec_timeout_seconds"`
	CapabilityTTLSeconds     int    `toml:"capability_ttl_seconds"`
	CodecRetryBackoffSeconds int    `toml:"codec_retry_backoff_seconds"`
}

// Limits holds the admission ceilings enforced before any expensive work.
type Limits struct {
	MaxAudioSizeMB        float64 `toml:"max_audio_size_mb"`
	MaxVideoSegmentSizeMB float64 `toml:"max_video_segment_size_mb"`
	MaxTotalSegments      int     `toml:"max_total_segments"`
	MaxJobDurationMs      int64   `toml:"max_job_duration_ms"`
	MaxConcurrentJobs     int     `toml:"max_concurrent_jobs"`
	MinAudioDurationMs    int64   `toml:"min_audio_duration_ms"`
	MaxAudioDurationMs    int64   `toml:"max_audio_duration_ms"`
}

// Chunking holds defaults for audio chunk requests.
type Chunking struct {
	ChunkDurationSeconds int `toml:"chunk_duration_seconds"`
}

// Poller configures the client-side progress loop.
type Poller struct {
	IntervalSeconds int `toml:"interval_seconds"`
	MaxAttempts     int `toml:"max_attempts"`
	ExpectedSeconds int `toml:"expected_seconds"`
}

// Client configures how the CLI reaches a running server.
type Client struct {
	APIURL   string `toml:"api_url"`
	APIToken string `toml:"api_token"`
}

// Notifications configures ntfy pushes for finished jobs.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for splicer.
//
// Configuration sections by subsystem:
//   - Server: HTTP API bind address, bearer token, timeouts
//   - Store: job-status database (sqlite or postgres)
//   - Storage: artifact uploads (filesystem or s3)
//   - Sandbox: codec runtime backend and its timeouts
//   - Limits: admission ceilings and concurrency
//   - Chunking: default chunk length
//   - Poller: client polling cadence
//   - Client: API endpoint used by CLI commands
//   - Notifications: ntfy topic for job outcomes
//   - Logging: log format, level and directory
type Config struct {
	Server        Server        `toml:"server"`
	Store         Store         `toml:"store"`
	Storage       Storage       `toml:"storage"`
	Sandbox       Sandbox       `toml:"sandbox"`
	Limits        Limits        `toml:"limits"`
	Chunking      Chunking      `toml:"chunking"`
	Poller        Poller        `toml:"poller"`
	Client        Client        `toml:"client"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("splicer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the server writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Sandbox.WorkspaceDir}
	if c.Logging.Dir != "" {
		dirs = append(dirs, c.Logging.Dir)
	}
	if c.Store.Driver == StoreDriverSQLite {
		dirs = append(dirs, filepath.Dir(c.Store.Path))
	}
	if c.Storage.Backend == StorageBackendFilesystem {
		dirs = append(dirs, c.Storage.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// InitTimeout returns how long a sandbox session may take to become ready.
func (c *Config) InitTimeout() time.Duration {
	return time.Duration(c.Sandbox.InitTimeoutSeconds) * time.Second
}

// ExecTimeout returns the ceiling for a single codec invocation.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Sandbox.ExecTimeoutSeconds) * time.Second
}

// CapabilityTTL returns how long a capability probe result is reused.
func (c *Config) CapabilityTTL() time.Duration {
	return time.Duration(c.Sandbox.CapabilityTTLSeconds) * time.Second
}

// CodecRetryBackoff returns the delay before retrying a failed codec call.
func (c *Config) CodecRetryBackoff() time.Duration {
	return time.Duration(c.Sandbox.CodecRetryBackoffSeconds) * time.Second
}

// PollInterval returns the client polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

// ExpectedJobDuration returns the estimate used for simulated poll progress.
func (c *Config) ExpectedJobDuration() time.Duration {
	return time.Duration(c.Poller.ExpectedSeconds) * time.Second
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// PresignTTL returns the lifetime of presigned download URLs.
func (c *Config) PresignTTL() time.Duration {
	return time.Duration(c.Storage.PresignTTLSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
