package preflight

import (
	"context"

	"splicer/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if cfg.Store.Driver == config.StoreDriverSQLite {
		results = append(results, CheckParentDirectory("Job database", cfg.Store.Path))
	}

	switch cfg.Storage.Backend {
	case config.StorageBackendFilesystem:
		results = append(results, CheckDirectoryAccess("Artifact directory", cfg.Storage.Dir))
	case config.StorageBackendS3:
		results = append(results, CheckBucketConfigured(cfg.Storage))
	}

	switch cfg.Sandbox.Backend {
	case config.SandboxBackendLocal:
		results = append(results, CheckDirectoryAccess("Sandbox workspace", cfg.Sandbox.WorkspaceDir))
		results = append(results, CheckFFmpeg(cfg.Sandbox.FFmpegBinary))
	case config.SandboxBackendRemote:
		results = append(results, CheckRemoteSandbox(ctx, cfg.Sandbox.RemoteURL, cfg.Sandbox.RemoteToken))
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
