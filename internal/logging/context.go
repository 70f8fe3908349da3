package logging

import (
	"context"
	"log/slog"

	"splicer/internal/services"
)

// Keys shared by every component.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldJobKind       = "job_kind"
	FieldStage         = "stage"
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
)

var contextFields = []struct {
	key    string
	lookup func(context.Context) (string, bool)
}{
	{FieldJobID, services.JobIDFromContext},
	{FieldStage, services.StageFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the job, stage and correlation attrs carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, f := range contextFields {
		if v, ok := f.lookup(ctx); ok {
			fields = append(fields, slog.String(f.key, v))
		}
	}
	return fields
}

// WithContext returns logger with the fields from ContextFields attached.
// A nil logger yields a no-op.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
