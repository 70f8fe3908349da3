package jobs

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchema string

const pgUniqueViolation = "23505"

// PostgresStore is a Store backed by a shared PostgreSQL database.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &PostgresStore{pool: pool, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}
	var version int
	if err := s.pool.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Create inserts a pending job.
func (s *PostgresStore) Create(ctx context.Context, id string, kind Kind, request []byte) (*Job, error) {
	if err := validateCreate(id, kind); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, kind, status, progress, request_json, created_at, updated_at)
         VALUES ($1, $2, $3, 0, $4, $5, $5)`,
		id, string(kind), string(StatusPending), normalizeJSON(request), now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("create job %s: %w", id, ErrDuplicateJob)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get loads one job.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	job, err := scanPostgresJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns jobs newest first.
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if opts.Status != "" {
		rows, err = s.pool.Query(ctx, "SELECT "+jobColumns+" FROM jobs WHERE status = $1 ORDER BY seq DESC LIMIT $2",
			string(opts.Status), opts.limit())
	} else {
		rows, err = s.pool.Query(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY seq DESC LIMIT $1", opts.limit())
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanPostgresJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkProcessing moves a pending job to processing.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3 AND status NOT IN ($4, $5)`,
		string(StatusProcessing), s.now().UTC(), id, string(StatusCompleted), string(StatusFailed),
	)
}

// UpdateProgress records progress without ever lowering it.
func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, progress int, stage, message string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE jobs
         SET progress = GREATEST(progress, $1::int),
             stage = COALESCE(NULLIF($2::text, ''), stage),
             message = COALESCE(NULLIF($3::text, ''), message),
             updated_at = $4
         WHERE id = $5 AND status NOT IN ($6, $7)`,
		clampProgress(progress), stage, message, s.now().UTC(), id, string(StatusCompleted), string(StatusFailed),
	)
}

// Complete marks the job completed with its result.
func (s *PostgresStore) Complete(ctx context.Context, id, resultURL string, preview bool, result []byte) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE jobs
         SET status = $1, progress = 100, stage = 'completed', result_url = $2, preview = $3, result_json = $4, updated_at = $5
         WHERE id = $6 AND status NOT IN ($7, $8)`,
		string(StatusCompleted), resultURL, preview, normalizeJSON(result), s.now().UTC(),
		id, string(StatusCompleted), string(StatusFailed),
	)
}

// Fail marks the job failed with message.
func (s *PostgresStore) Fail(ctx context.Context, id, message string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE jobs SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4 AND status NOT IN ($5, $6)`,
		string(StatusFailed), message, s.now().UTC(), id, string(StatusCompleted), string(StatusFailed),
	)
}

// FailInterrupted fails jobs abandoned by a previous process.
func (s *PostgresStore) FailInterrupted(ctx context.Context, message string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, updated_at = $3 WHERE status IN ($4, $5)`,
		string(StatusFailed), message, s.now().UTC(), string(StatusPending), string(StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) guardedUpdate(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return terminal(id, job.Status)
	}
	return nil
}

func scanPostgresJob(row pgx.Row) (*Job, error) {
	var (
		id, kind, status     string
		progress             int
		stage, message       *string
		errorMessage, result *string
		preview              bool
		requestJSON          []byte
		resultJSON           []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(
		&id, &kind, &status, &progress, &stage, &message, &errorMessage, &result,
		&preview, &requestJSON, &resultJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	return &Job{
		ID:        id,
		Kind:      Kind(kind),
		Status:    Status(status),
		Progress:  progress,
		Stage:     deref(stage),
		Message:   deref(message),
		Error:     deref(errorMessage),
		ResultURL: deref(result),
		Preview:   preview,
		Request:   requestJSON,
		Result:    resultJSON,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
