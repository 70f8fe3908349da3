package jobs

import (
	"context"
	"errors"
	"fmt"

	"splicer/internal/config"
	"splicer/internal/services"
)

var (
	// ErrJobTerminal is returned when an update targets a completed or failed job.
	ErrJobTerminal = errors.New("job already terminal")
	// ErrSchemaMismatch indicates the database schema version is not the one this build expects.
	ErrSchemaMismatch = errors.New("schema version mismatch")
	// ErrDuplicateJob is returned when Create is called with an id that already exists.
	ErrDuplicateJob = errors.New("job already exists")
)

// schemaVersion is bumped whenever either schema file changes.
const schemaVersion = 1

// Store persists job-status records.
type Store interface {
	Create(ctx context.Context, id string, kind Kind, request []byte) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, opts ListOptions) ([]*Job, error)
	MarkProcessing(ctx context.Context, id string) error
	// UpdateProgress records progress for a running job. Lower values than the
	// stored one are ignored.
	UpdateProgress(ctx context.Context, id string, progress int, stage, message string) error
	Complete(ctx context.Context, id, resultURL string, preview bool, result []byte) error
	Fail(ctx context.Context, id, message string) error
	// FailInterrupted fails every job that was pending or processing, returning
	// how many rows changed. It runs once at startup.
	FailInterrupted(ctx context.Context, message string) (int, error)
	Close() error
}

// Open connects to the store selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case "", config.StoreDriverSQLite:
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(ctx, cfg.Store.Path)
	case config.StoreDriverPostgres:
		return OpenPostgres(ctx, cfg.Store.DSN)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "open",
			fmt.Sprintf("unsupported store driver %q", cfg.Store.Driver), nil)
	}
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("job %s", id), nil)
}

func terminal(id string, status Status) error {
	return fmt.Errorf("job %s is %s: %w", id, status, ErrJobTerminal)
}

func validateCreate(id string, kind Kind) error {
	if id == "" {
		return services.Wrap(services.ErrValidation, "jobs", "create", "job id is required", nil)
	}
	if !kind.Valid() {
		return services.Wrap(services.ErrValidation, "jobs", "create", fmt.Sprintf("unknown job kind %q", kind), nil)
	}
	return nil
}

func normalizeJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
