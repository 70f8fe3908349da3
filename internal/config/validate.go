package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateSandbox(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validatePoller(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Bind == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		return errors.New("server.read_timeout_seconds must be positive")
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		return errors.New("server.write_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path must be set when store.driver is sqlite")
		}
	case StoreDriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn must be set when store.driver is postgres (or set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	switch s.Backend {
	case StorageBackendFilesystem:
		if s.Dir == "" {
			return errors.New("storage.dir must be set when storage.backend is filesystem")
		}
		if s.PublicBaseURL == "" {
			return errors.New("storage.public_base_url must be set when storage.backend is filesystem")
		}
	case StorageBackendS3:
		if s.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is s3 (or set SPLICER_S3_BUCKET)")
		}
		if strings.TrimSpace(s.Region) == "" {
			return errors.New("storage.region must be set when storage.backend is s3")
		}
		if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
			return errors.New("storage.access_key_id and storage.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q", s.Backend)
	}
	if s.PublicBaseURL != "" {
		if err := validateHTTPURL("storage.public_base_url", s.PublicBaseURL); err != nil {
			return err
		}
	}
	if s.UploadAttempts <= 0 {
		return errors.New("storage.upload_attempts must be positive")
	}
	if s.PresignTTLSeconds <= 0 {
		return errors.New("storage.presign_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSandbox() error {
	sb := c.Sandbox
	switch sb.Backend {
	case SandboxBackendLocal:
		if sb.WorkspaceDir == "" {
			return errors.New("sandbox.workspace_dir must be set when sandbox.backend is local")
		}
	case SandboxBackendRemote:
		if sb.RemoteURL == "" {
			return errors.New("sandbox.remote_url must be set when sandbox.backend is remote")
		}
		if err := validateHTTPURL("sandbox.remote_url", sb.RemoteURL); err != nil {
			return err
		}
		if sb.CoreURL == "" {
			return errors.New("sandbox.core_url must be set when sandbox.backend is remote")
		}
	default:
		return fmt.Errorf("sandbox.backend: unsupported value %q", sb.Backend)
	}
	if err := validateHTTPURL("sandbox.origin", sb.Origin); err != nil {
		return err
	}
	positive := map[string]int{
		"sandbox.init_timeout_seconds":   sb.InitTimeoutSeconds,
		"sandbox.exec_timeout_seconds":   sb.ExecTimeoutSeconds,
		"sandbox.capability_ttl_seconds": sb.CapabilityTTLSeconds,
	}
	if err := ensurePositiveMap(positive); err != nil {
		return err
	}
	if sb.CodecRetryBackoffSeconds < 0 {
		return errors.New("sandbox.codec_retry_backoff_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLimits() error {
	l := c.Limits
	if l.MaxAudioSizeMB <= 0 {
		return errors.New("limits.max_audio_size_mb must be positive")
	}
	if l.MaxVideoSegmentSizeMB <= 0 {
		return errors.New("limits.max_video_segment_size_mb must be positive")
	}
	if l.MaxTotalSegments <= 0 {
		return errors.New("limits.max_total_segments must be positive")
	}
	if l.MaxJobDurationMs <= 0 {
		return errors.New("limits.max_job_duration_ms must be positive")
	}
	if l.MaxConcurrentJobs <= 0 {
		return errors.New("limits.max_concurrent_jobs must be positive")
	}
	if l.MinAudioDurationMs <= 0 || l.MaxAudioDurationMs <= 0 {
		return errors.New("limits.min_audio_duration_ms and limits.max_audio_duration_ms must be positive")
	}
	if l.MinAudioDurationMs >= l.MaxAudioDurationMs {
		return errors.New("limits.min_audio_duration_ms must be below limits.max_audio_duration_ms")
	}
	if c.Chunking.ChunkDurationSeconds <= 0 {
		return errors.New("chunking.chunk_duration_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePoller() error {
	return ensurePositiveMap(map[string]int{
		"poller.interval_seconds": c.Poller.IntervalSeconds,
		"poller.max_attempts":     c.Poller.MaxAttempts,
		"poller.expected_seconds": c.Poller.ExpectedSeconds,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	if err := validateHTTPURL("notifications.ntfy_topic", c.Notifications.NtfyTopic); err != nil {
		return err
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func validateHTTPURL(key, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL", key)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}
