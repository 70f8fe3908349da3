package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"splicer/internal/services"
)

// ExecResult is the outcome of one codec invocation. A non-zero ExitCode is
// not a transport error; Session.Exec turns it into an ExecError.
type ExecResult struct {
	ExitCode int    `json:"exitCode"`
	Log      string `json:"log"`
}

// Runtime is one isolated codec execution environment with its own working
// storage. Implementations need not be safe for concurrent use; a Session
// drives it from a single goroutine.
type Runtime interface {
	// Load injects the codec library into the runtime.
	Load(ctx context.Context, coreURL string) error
	// Ready reports whether the codec entry points are callable.
	Ready(ctx context.Context) (bool, error)
	Exec(ctx context.Context, args []string) (ExecResult, error)
	WriteFile(ctx context.Context, name string, data []byte) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	// Fetch downloads url directly into the working storage as name.
	Fetch(ctx context.Context, url, name string) (int64, error)
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Launcher creates runtimes. Probe reports whether a runtime could be
// launched right now without launching one.
type Launcher interface {
	Name() string
	Launch(ctx context.Context, origin string) (Runtime, error)
	Probe(ctx context.Context) error
}

var (
	// ErrOpaqueOrigin rejects blank and opaque origins; the codec worker cannot
	// load from them.
	ErrOpaqueOrigin    = errors.New("sandbox origin must be an absolute http(s) URL")
	ErrSessionNotReady = errors.New("sandbox session not ready")
	ErrSessionClosed   = errors.New("sandbox session closed")
	ErrInvalidFileName = errors.New("invalid sandbox file name")
)

// ValidateOrigin rejects "", about:blank, data:, blob:, file: and "null"
// origins along with anything that is not an absolute http(s) URL.
func ValidateOrigin(origin string) error {
	trimmed := strings.TrimSpace(origin)
	lower := strings.ToLower(trimmed)
	switch {
	case trimmed == "", lower == "null", lower == "about:blank":
		return fmt.Errorf("%w: %q", ErrOpaqueOrigin, origin)
	case strings.HasPrefix(lower, "data:"), strings.HasPrefix(lower, "blob:"), strings.HasPrefix(lower, "file:"):
		return fmt.Errorf("%w: %q", ErrOpaqueOrigin, origin)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrOpaqueOrigin, origin)
	}
	return nil
}

// ValidFileName reports whether name is a plain file name usable inside a
// session's working storage.
func ValidFileName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}

// UnavailableError reports that a session could not be established. Phase is
// one of "origin", "launch", "inject" or "init".
type UnavailableError struct {
	Phase string
	Err   error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", services.ErrSandboxUnavailable, e.Phase)
	}
	return fmt.Sprintf("%s: %s: %v", services.ErrSandboxUnavailable, e.Phase, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrSandboxUnavailable}
	}
	return []error{services.ErrSandboxUnavailable, e.Err}
}

// ExecError reports a codec command that ran and failed.
type ExecError struct {
	Op       string
	ExitCode int
	Log      string
	Err      error
}

func (e *ExecError) Error() string {
	var b strings.Builder
	b.WriteString(services.ErrCodecExecution.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	} else {
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	}
	if tail := logTail(e.Log, 3); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	}
	return b.String()
}

func (e *ExecError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrCodecExecution}
	}
	return []error{services.ErrCodecExecution, e.Err}
}

// logTail returns the last n non-empty lines of log joined with " | ".
func logTail(log string, n int) string {
	lines := strings.Split(strings.TrimSpace(log), "\n")
	out := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			out = append([]string{line}, out...)
		}
	}
	return strings.Join(out, " | ")
}
