package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"splicer/internal/config"
	"splicer/internal/deps"
	"splicer/internal/sandbox"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckParentDirectory verifies the directory that will hold path.
func CheckParentDirectory(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	result := CheckDirectoryAccess(name, filepath.Dir(path))
	if result.Passed {
		result.Detail = fmt.Sprintf("%s (parent writable)", path)
	}
	return result
}

// CheckFFmpeg reports whether the local ffmpeg binary resolves.
func CheckFFmpeg(binary string) Result {
	status := deps.ResolveFFmpeg(binary)
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: status.Command}
}

// CheckBucketConfigured validates the S3 settings without contacting the bucket.
func CheckBucketConfigured(cfg config.Storage) Result {
	const name = "S3 bucket"
	if strings.TrimSpace(cfg.Bucket) == "" {
		return Result{Name: name, Detail: "bucket not configured"}
	}
	detail := fmt.Sprintf("s3://%s (%s)", cfg.Bucket, cfg.Region)
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		detail = fmt.Sprintf("s3://%s via %s", cfg.Bucket, endpoint)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckRemoteSandbox probes the remote codec service with a five-second budget.
func CheckRemoteSandbox(ctx context.Context, baseURL, token string) Result {
	const name = "Remote sandbox"

	if strings.TrimSpace(baseURL) == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	launcher := sandbox.NewRemoteLauncher(baseURL, sandbox.WithRemoteToken(token))
	if err := launcher.Probe(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable and isolated"}
}

func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (sandbox unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (sandbox unreachable)"
	}
	var statusErr *sandbox.RemoteStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("health check failed (%d)", statusErr.StatusCode)
	}
	return err.Error()
}
