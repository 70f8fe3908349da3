package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"splicer/internal/logging"
	"splicer/internal/services"
)

const (
	defaultInitTimeout  = 30 * time.Second
	defaultReadyPollInt = 250 * time.Millisecond
)

// State is the lifecycle position of a session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Manager.
type Options struct {
	Origin            string
	CoreURL           string
	InitTimeout       time.Duration
	ReadyPollInterval time.Duration
	ExecTimeout       time.Duration
}

// Manager hands out one fresh session per WithSession call.
type Manager struct {
	launcher Launcher
	opts     Options
	logger   *slog.Logger
}

// NewManager constructs a Manager over launcher.
func NewManager(launcher Launcher, opts Options, logger *slog.Logger) *Manager {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = defaultInitTimeout
	}
	if opts.ReadyPollInterval <= 0 {
		opts.ReadyPollInterval = defaultReadyPollInt
	}
	return &Manager{
		launcher: launcher,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "sandbox"),
	}
}

// Launcher returns the underlying launcher.
func (m *Manager) Launcher() Launcher { return m.launcher }

// Probe reports whether the launcher can currently produce a usable runtime.
func (m *Manager) Probe(ctx context.Context) error {
	if err := ValidateOrigin(m.opts.Origin); err != nil {
		return &UnavailableError{Phase: "origin", Err: err}
	}
	if err := m.launcher.Probe(ctx); err != nil {
		return &UnavailableError{Phase: "probe", Err: err}
	}
	return nil
}

// WithSession launches a runtime, waits for it to become ready, and runs fn.
// The runtime is closed exactly once on every exit path, including a panic in
// fn, which is re-raised after teardown. Close failures are logged only.
func (m *Manager) WithSession(ctx context.Context, fn func(context.Context, *Session) error) (err error) {
	if err := ValidateOrigin(m.opts.Origin); err != nil {
		return &UnavailableError{Phase: "origin", Err: err}
	}

	rt, err := m.launcher.Launch(ctx, m.opts.Origin)
	if err != nil {
		return &UnavailableError{Phase: "launch", Err: err}
	}

	session := &Session{
		id:          uuid.NewString(),
		runtime:     rt,
		execTimeout: m.opts.ExecTimeout,
	}
	session.logger = logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldSessionID, session.id))

	defer func() {
		if recovered := recover(); recovered != nil {
			session.teardown(context.WithoutCancel(ctx))
			panic(recovered)
		}
		session.teardown(context.WithoutCancel(ctx))
	}()

	if err := m.initialize(ctx, session); err != nil {
		return err
	}
	session.logger.Debug("sandbox session ready", logging.String("launcher", m.launcher.Name()))
	return fn(ctx, session)
}

func (m *Manager) initialize(ctx context.Context, session *Session) error {
	session.setState(StateLoading)
	initCtx, cancel := context.WithTimeout(ctx, m.opts.InitTimeout)
	defer cancel()

	if err := session.runtime.Load(initCtx, m.opts.CoreURL); err != nil {
		if errors.Is(initCtx.Err(), context.DeadlineExceeded) {
			return &UnavailableError{Phase: "init", Err: fmt.Errorf("%w: load exceeded %s", services.ErrTimeout, m.opts.InitTimeout)}
		}
		return &UnavailableError{Phase: "inject", Err: err}
	}

	ticker := time.NewTicker(m.opts.ReadyPollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		ready, err := session.runtime.Ready(initCtx)
		if err == nil && ready {
			session.setState(StateReady)
			return nil
		}
		if err != nil {
			lastErr = err
		}
		select {
		case <-initCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cause := fmt.Errorf("%w: not ready after %s", services.ErrTimeout, m.opts.InitTimeout)
			if lastErr != nil {
				cause = fmt.Errorf("%w: %w", cause, lastErr)
			}
			return &UnavailableError{Phase: "init", Err: cause}
		case <-ticker.C:
		}
	}
}

// Session is an exclusive handle on one ready runtime. It is valid only
// inside the WithSession callback that produced it.
type Session struct {
	id          string
	runtime     Runtime
	execTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) guard() error {
	switch s.State() {
	case StateReady:
		return nil
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrSessionNotReady
	}
}

// Exec runs a codec command and fails with an ExecError on a non-zero exit.
func (s *Session) Exec(ctx context.Context, op string, args []string) (ExecResult, error) {
	result, err := s.run(ctx, op, args)
	if err != nil {
		return result, err
	}
	if result.ExitCode != 0 {
		return result, &ExecError{Op: op, ExitCode: result.ExitCode, Log: result.Log}
	}
	return result, nil
}

// Probe runs a codec command whose non-zero exit is expected and returns its
// diagnostic log.
func (s *Session) Probe(ctx context.Context, op string, args []string) (string, error) {
	result, err := s.run(ctx, op, args)
	if err != nil {
		return "", err
	}
	return result.Log, nil
}

func (s *Session) run(ctx context.Context, op string, args []string) (ExecResult, error) {
	if err := s.guard(); err != nil {
		return ExecResult{}, err
	}
	execCtx := ctx
	if s.execTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.execTimeout)
		defer cancel()
	}
	started := time.Now()
	result, err := s.runtime.Exec(execCtx, args)
	s.logger.Debug("codec exec",
		logging.String("op", op),
		logging.String("args", strings.Join(args, " ")),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("elapsed", time.Since(started)),
	)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: exceeded %s", services.ErrTimeout, s.execTimeout)
		}
		return result, &ExecError{Op: op, ExitCode: -1, Log: result.Log, Err: err}
	}
	return result, nil
}

// WriteFile stores data in the working storage.
func (s *Session) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := ValidFileName(name); err != nil {
		return err
	}
	return s.runtime.WriteFile(ctx, name, data)
}

// ReadFile returns the content of a working file.
func (s *Session) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if err := ValidFileName(name); err != nil {
		return nil, err
	}
	return s.runtime.ReadFile(ctx, name)
}

// Fetch downloads url into the working storage as name.
func (s *Session) Fetch(ctx context.Context, url, name string) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if err := ValidFileName(name); err != nil {
		return 0, err
	}
	return s.runtime.Fetch(ctx, url, name)
}

// Remove deletes a working file.
func (s *Session) Remove(ctx context.Context, name string) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := ValidFileName(name); err != nil {
		return err
	}
	return s.runtime.Remove(ctx, name)
}

// List returns the working file names.
func (s *Session) List(ctx context.Context) ([]string, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.runtime.List(ctx)
}

// Purge removes every working file, logging failures instead of returning them.
func (s *Session) Purge(ctx context.Context) {
	names, err := s.List(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "sandbox purge: list failed", "sandbox_purge_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "working files remain until the session closes"),
		)
		return
	}
	for _, name := range names {
		if err := s.Remove(ctx, name); err != nil {
			logging.WarnWithContext(s.logger, "sandbox purge: remove failed", "sandbox_purge_failed",
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "working file remains until the session closes"),
			)
		}
	}
}

func (s *Session) teardown(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		if err := s.runtime.Close(ctx); err != nil {
			logging.WarnWithContext(s.logger, "sandbox close failed", "sandbox_close_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the sandbox backend for leaked sessions"),
				logging.String(logging.FieldImpact, "none for this job"),
			)
		}
	})
}
