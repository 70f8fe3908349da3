package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// timeLayout is fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	jobColumns = "id, kind, status, progress, stage, message, error_message, result_url, preview, request_json, result_json, created_at, updated_at"
)

// SQLiteStore is the default Store backed by a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

// Create inserts a pending job.
func (s *SQLiteStore) Create(ctx context.Context, id string, kind Kind, request []byte) (*Job, error) {
	if err := validateCreate(id, kind); err != nil {
		return nil, err
	}
	now := s.stamp()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (id, kind, status, progress, request_json, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?, ?)`,
		id, string(kind), string(StatusPending), nullableText(request), now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("create job %s: %w", id, ErrDuplicateJob)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get loads one job.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanSQLiteJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns jobs newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	args := []any{}
	if opts.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(opts.Status))
	}
	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, opts.limit())

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkProcessing moves a pending job to processing.
func (s *SQLiteStore) MarkProcessing(ctx context.Context, id string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status NOT IN (?, ?)`,
		string(StatusProcessing), s.stamp(), id, string(StatusCompleted), string(StatusFailed),
	)
}

// UpdateProgress records progress without ever lowering it.
func (s *SQLiteStore) UpdateProgress(ctx context.Context, id string, progress int, stage, message string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE jobs
         SET progress = MAX(progress, ?),
             stage = COALESCE(NULLIF(?, ''), stage),
             message = COALESCE(NULLIF(?, ''), message),
             updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		clampProgress(progress), stage, message, s.stamp(), id, string(StatusCompleted), string(StatusFailed),
	)
}

// Complete marks the job completed with its result.
func (s *SQLiteStore) Complete(ctx context.Context, id, resultURL string, preview bool, result []byte) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE jobs
         SET status = ?, progress = 100, stage = 'completed', result_url = ?, preview = ?, result_json = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		string(StatusCompleted), resultURL, boolToInt(preview), nullableText(result), s.stamp(),
		id, string(StatusCompleted), string(StatusFailed),
	)
}

// Fail marks the job failed with message.
func (s *SQLiteStore) Fail(ctx context.Context, id, message string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status NOT IN (?, ?)`,
		string(StatusFailed), message, s.stamp(), id, string(StatusCompleted), string(StatusFailed),
	)
}

// FailInterrupted fails jobs abandoned by a previous process.
func (s *SQLiteStore) FailInterrupted(ctx context.Context, message string) (int, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE status IN (?, ?)`,
		string(StatusFailed), message, s.stamp(), string(StatusPending), string(StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// guardedUpdate runs a terminal-guarded update. When no row changed it
// reports whether the job is missing or already terminal.
func (s *SQLiteStore) guardedUpdate(ctx context.Context, id, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n > 0 {
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

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func scanSQLiteJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id, kind, status     string
		progress             int
		stage, message       sql.NullString
		errorMessage, result sql.NullString
		preview              int64
		requestJSON          sql.NullString
		resultJSON           sql.NullString
		createdRaw           string
		updatedRaw           string
	)
	if err := scanner.Scan(
		&id, &kind, &status, &progress, &stage, &message, &errorMessage, &result,
		&preview, &requestJSON, &resultJSON, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	job := &Job{
		ID:        id,
		Kind:      Kind(kind),
		Status:    Status(status),
		Progress:  progress,
		Stage:     stage.String,
		Message:   message.String,
		Error:     errorMessage.String,
		ResultURL: result.String,
		Preview:   preview != 0,
	}
	if requestJSON.Valid && requestJSON.String != "" {
		job.Request = []byte(requestJSON.String)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		job.Result = []byte(resultJSON.String)
	}
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	return job, nil
}

func parseTime(raw string) time.Time {
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	return time.Time{}
}

func nullableText(raw []byte) any {
	if raw = normalizeJSON(raw); raw == nil {
		return nil
	}
	return string(raw)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
