package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"splicer/internal/deps"
	"splicer/internal/logging"
	"splicer/internal/remotefile"
)

const (
	sessionDirPrefix = "session-"
	lockFileName     = ".session.lock"
)

// LocalLauncher runs the ffmpeg binary on this host. Each runtime gets a
// private directory under WorkspaceDir, held with a file lock until Close.
type LocalLauncher struct {
	binary    string
	workspace string
	fetcher   *remotefile.Client
	logger    *slog.Logger
}

// NewLocalLauncher constructs a launcher. An empty binary means "ffmpeg".
func NewLocalLauncher(binary, workspace string, fetcher *remotefile.Client, logger *slog.Logger) *LocalLauncher {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if fetcher == nil {
		fetcher = remotefile.New()
	}
	return &LocalLauncher{
		binary:    binary,
		workspace: workspace,
		fetcher:   fetcher,
		logger:    logging.NewComponentLogger(logger, "sandbox-local"),
	}
}

func (l *LocalLauncher) Name() string { return "local" }

// Probe checks that the binary resolves and the workspace is writable.
func (l *LocalLauncher) Probe(context.Context) error {
	if status := deps.ResolveFFmpeg(l.binary); !status.Available {
		return errors.New(status.Detail)
	}
	if err := os.MkdirAll(l.workspace, 0o755); err != nil {
		return fmt.Errorf("workspace %q: %w", l.workspace, err)
	}
	probe, err := os.CreateTemp(l.workspace, ".probe-*")
	if err != nil {
		return fmt.Errorf("workspace %q not writable: %w", l.workspace, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// Launch creates and locks a fresh session directory. The origin is checked
// by the Manager; a local process has no page origin of its own.
func (l *LocalLauncher) Launch(_ context.Context, _ string) (Runtime, error) {
	if err := os.MkdirAll(l.workspace, 0o755); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	dir := filepath.Join(l.workspace, sessionDirPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("lock session dir: %w", err)
	}
	if !locked {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("session dir %s is locked by another process", dir)
	}
	return &localRuntime{
		binary:  l.binary,
		dir:     dir,
		lock:    lock,
		fetcher: l.fetcher,
	}, nil
}

// Sweep removes session directories left behind by crashed processes. A
// directory whose lock is still held belongs to a live session and is kept.
func (l *LocalLauncher) Sweep() (int, error) {
	entries, err := os.ReadDir(l.workspace)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read workspace: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), sessionDirPrefix) {
			continue
		}
		dir := filepath.Join(l.workspace, entry.Name())
		lock := flock.New(filepath.Join(dir, lockFileName))
		locked, err := lock.TryLock()
		if err != nil || !locked {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			l.logger.Warn("stale session cleanup failed",
				logging.String("dir", dir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "sandbox_sweep_failed"),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
				logging.String(logging.FieldImpact, "disk space is not reclaimed"),
			)
		} else {
			removed++
		}
		_ = lock.Unlock()
	}
	if removed > 0 {
		l.logger.Info("removed stale sandbox sessions", logging.Int("count", removed))
	}
	return removed, nil
}

type localRuntime struct {
	binary  string
	dir     string
	lock    *flock.Flock
	fetcher *remotefile.Client
	loaded  bool
	closed  bool
}

// Load verifies the binary runs. coreURL is meaningless for a host binary.
func (r *localRuntime) Load(ctx context.Context, _ string) error {
	cmd := exec.CommandContext(ctx, r.binary, "-hide_banner", "-version")
	cmd.Dir = r.dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s -version: %w: %s", r.binary, err, logTail(string(out), 2))
	}
	r.loaded = true
	return nil
}

func (r *localRuntime) Ready(context.Context) (bool, error) {
	return r.loaded && !r.closed, nil
}

func (r *localRuntime) Exec(ctx context.Context, args []string) (ExecResult, error) {
	full := append([]string{"-nostdin", "-y"}, args...)
	cmd := exec.CommandContext(ctx, r.binary, full...)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	result := ExecResult{Log: string(out)}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, err
	}
	return result, nil
}

func (r *localRuntime) WriteFile(_ context.Context, name string, data []byte) error {
	return os.WriteFile(filepath.Join(r.dir, name), data, 0o644)
}

func (r *localRuntime) ReadFile(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.dir, name))
}

func (r *localRuntime) Fetch(ctx context.Context, url, name string) (int64, error) {
	file, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return 0, err
	}
	n, copyErr := r.fetcher.Copy(ctx, url, file, 0)
	closeErr := file.Close()
	if copyErr != nil {
		return n, copyErr
	}
	return n, closeErr
}

func (r *localRuntime) Remove(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(r.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (r *localRuntime) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (r *localRuntime) Close(context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	removeErr := os.RemoveAll(r.dir)
	unlockErr := r.lock.Unlock()
	return errors.Join(removeErr, unlockErr)
}
