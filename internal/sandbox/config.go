package sandbox

import (
	"fmt"
	"log/slog"

	"splicer/internal/config"
	"splicer/internal/remotefile"
)

// NewLauncherFromConfig builds the launcher selected by sandbox.backend.
func NewLauncherFromConfig(cfg *config.Config, logger *slog.Logger) (Launcher, error) {
	switch cfg.Sandbox.Backend {
	case config.SandboxBackendLocal:
		return NewLocalLauncher(cfg.Sandbox.FFmpegBinary, cfg.Sandbox.WorkspaceDir, remotefile.New(), logger), nil
	case config.SandboxBackendRemote:
		return NewRemoteLauncher(cfg.Sandbox.RemoteURL, WithRemoteToken(cfg.Sandbox.RemoteToken)), nil
	default:
		return nil, fmt.Errorf("sandbox: unsupported backend %q", cfg.Sandbox.Backend)
	}
}

// OptionsFromConfig maps the sandbox section onto Manager options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Origin:      cfg.Sandbox.Origin,
		CoreURL:     cfg.Sandbox.CoreURL,
		InitTimeout: cfg.InitTimeout(),
		ExecTimeout: cfg.ExecTimeout(),
	}
}
