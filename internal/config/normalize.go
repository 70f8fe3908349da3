package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeServer()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizeSandbox(); err != nil {
		return err
	}
	c.normalizeClient()
	c.normalizeNotifications()
	return c.normalizeLogging()
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("SPLICER_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverSQLite
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.Store.DSN = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Store.Path, err = expandPath(strings.TrimSpace(c.Store.Path)); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	s := &c.Storage
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = StorageBackendFilesystem
	}
	s.PublicBaseURL = strings.TrimRight(strings.TrimSpace(s.PublicBaseURL), "/")
	s.Endpoint = strings.TrimRight(strings.TrimSpace(s.Endpoint), "/")
	s.Bucket = strings.TrimSpace(s.Bucket)
	if s.Bucket == "" {
		if value, ok := os.LookupEnv("SPLICER_S3_BUCKET"); ok {
			s.Bucket = strings.TrimSpace(value)
		}
	}
	s.Region = strings.TrimSpace(s.Region)
	if s.Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok && strings.TrimSpace(value) != "" {
			s.Region = strings.TrimSpace(value)
		} else {
			s.Region = defaultStorageRegion
		}
	}
	if s.AccessKeyID == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			s.AccessKeyID = strings.TrimSpace(value)
		}
	}
	if s.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			s.SecretAccessKey = strings.TrimSpace(value)
		}
	}
	if s.Backend == StorageBackendFilesystem && s.PublicBaseURL == "" && c.Server.Bind != "" {
		s.PublicBaseURL = "http://" + c.Server.Bind + "/artifacts"
	}
	var err error
	if s.Dir, err = expandPath(strings.TrimSpace(s.Dir)); err != nil {
		return fmt.Errorf("storage.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSandbox() error {
	sb := &c.Sandbox
	sb.Backend = strings.ToLower(strings.TrimSpace(sb.Backend))
	if sb.Backend == "" {
		sb.Backend = SandboxBackendLocal
	}
	sb.FFmpegBinary = strings.TrimSpace(sb.FFmpegBinary)
	if sb.FFmpegBinary == "" {
		sb.FFmpegBinary = defaultFFmpegBinary
	}
	sb.Origin = strings.TrimSpace(sb.Origin)
	sb.RemoteURL = strings.TrimRight(strings.TrimSpace(sb.RemoteURL), "/")
	sb.CoreURL = strings.TrimSpace(sb.CoreURL)
	sb.RemoteToken = strings.TrimSpace(sb.RemoteToken)
	if sb.RemoteToken == "" {
		if value, ok := os.LookupEnv("SPLICER_SANDBOX_TOKEN"); ok {
			sb.RemoteToken = strings.TrimSpace(value)
		}
	}
	var err error
	if sb.WorkspaceDir, err = expandPath(strings.TrimSpace(sb.WorkspaceDir)); err != nil {
		return fmt.Errorf("sandbox.workspace_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeClient() {
	c.Client.APIURL = strings.TrimRight(strings.TrimSpace(c.Client.APIURL), "/")
	c.Client.APIToken = strings.TrimSpace(c.Client.APIToken)
	if c.Client.APIToken == "" {
		c.Client.APIToken = c.Server.APIToken
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SPLICER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}
