package config

const (
	StoreDriverSQLite        = "sqlite"
	StoreDriverPostgres      = "postgres"
	StorageBackendFilesystem = "filesystem"
	StorageBackendS3         = "s3"
	SandboxBackendLocal      = "local"
	SandboxBackendRemote     = "remote"
)

const (
	defaultConfigPath               = "~/.config/splicer/config.toml"
	defaultServerBind               = "127.0.0.1:7600"
	defaultReadTimeoutSeconds       = 30
	defaultWriteTimeoutSeconds      = 60
	defaultStorePath                = "~/.local/share/splicer/jobs.db"
	defaultStorageDir               = "~/.local/share/splicer/artifacts"
	defaultStorageRegion            = "us-east-1"
	defaultUploadAttempts           = 3
	defaultPresignTTLSeconds        = 900
	defaultFFmpegBinary             = "ffmpeg"
	defaultWorkspaceDir             = "~/.local/share/splicer/sandbox"
	defaultSandboxOrigin            = "http://127.0.0.1:7600"
	defaultCoreURL                  = "https://unpkg.com/@ffmpeg/core@0.12.6/dist/umd/ffmpeg-core.js"
	defaultInitTimeoutSeconds       = 30
	defaultExecTimeoutSeconds       = 300
	defaultCapabilityTTLSeconds     = 60
	defaultCodecRetryBackoffSeconds = 2
	defaultMaxAudioSizeMB           = 20
	defaultMaxVideoSegmentSizeMB    = 50
	defaultMaxTotalSegments         = 100
	defaultMaxJobDurationMs         = 600_000
	defaultMaxConcurrentJobs        = 2
	defaultMinAudioDurationMs       = 5_000
	defaultMaxAudioDurationMs       = 600_000
	defaultChunkDurationSeconds     = 10
	defaultPollIntervalSeconds      = 2
	defaultPollMaxAttempts          = 60
	defaultPollExpectedSeconds      = 60
	defaultClientAPIURL             = "http://127.0.0.1:7600"
	defaultNtfyTimeoutSeconds       = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:                defaultServerBind,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
		},
		Store: Store{
			Driver: StoreDriverSQLite,
			Path:   defaultStorePath,
		},
		Storage: Storage{
			Backend:           StorageBackendFilesystem,
			Dir:               defaultStorageDir,
			UploadAttempts:    defaultUploadAttempts,
			PresignTTLSeconds: defaultPresignTTLSeconds,
		},
		Sandbox: Sandbox{
			Backend:                  SandboxBackendLocal,
			FFmpegBinary:             defaultFFmpegBinary,
			WorkspaceDir:             defaultWorkspaceDir,
			Origin:                   defaultSandboxOrigin,
			CoreURL:                  defaultCoreURL,
			InitTimeoutSeconds:       defaultInitTimeoutSeconds,
			ExecTimeoutSeconds:       defaultExecTimeoutSeconds,
			CapabilityTTLSeconds:     defaultCapabilityTTLSeconds,
			CodecRetryBackoffSeconds: defaultCodecRetryBackoffSeconds,
		},
		Limits: Limits{
			MaxAudioSizeMB:        defaultMaxAudioSizeMB,
			MaxVideoSegmentSizeMB: defaultMaxVideoSegmentSizeMB,
			MaxTotalSegments:      defaultMaxTotalSegments,
			MaxJobDurationMs:      defaultMaxJobDurationMs,
			MaxConcurrentJobs:     defaultMaxConcurrentJobs,
			MinAudioDurationMs:    defaultMinAudioDurationMs,
			MaxAudioDurationMs:    defaultMaxAudioDurationMs,
		},
		Chunking: Chunking{
			ChunkDurationSeconds: defaultChunkDurationSeconds,
		},
		Poller: Poller{
			IntervalSeconds: defaultPollIntervalSeconds,
			MaxAttempts:     defaultPollMaxAttempts,
			ExpectedSeconds: defaultPollExpectedSeconds,
		},
		Client: Client{
			APIURL: defaultClientAPIURL,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
