package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Pipeline failure classes. Components return errors that wrap exactly one of
// these markers so callers can branch with errors.Is.
var (
	// ErrAdmissionRejected means the request exceeds a configured ceiling. Not retried.
	ErrAdmissionRejected = errors.New("admission rejected")
	// ErrSandboxUnavailable covers launch, injection and initialization failures of the codec sandbox.
	ErrSandboxUnavailable = errors.New("sandbox unavailable")
	// ErrCodecExecution means a codec command ran and failed. The whole call may be retried once.
	ErrCodecExecution = errors.New("codec execution failed")
	// ErrUploadFailed means an artifact could not be stored. Retryable per artifact.
	ErrUploadFailed = errors.New("upload failed")
	// ErrPollTimeout means polling gave up before the job reached a terminal state.
	ErrPollTimeout = errors.New("poll timeout")
	// ErrJobFailed means the job itself reported failure.
	ErrJobFailed = errors.New("job failed")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrCodecExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err belongs to a class that may succeed when the
// same work is attempted again.
func Retryable(err error) bool {
	return errors.Is(err, ErrCodecExecution) || errors.Is(err, ErrUploadFailed)
}

// Class returns a stable snake_case label for the failure class of err. It is
// used as the machine-readable "code" in API error payloads.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAdmissionRejected):
		return "admission_rejected"
	case errors.Is(err, ErrSandboxUnavailable):
		return "sandbox_unavailable"
	case errors.Is(err, ErrCodecExecution):
		return "codec_execution_failed"
	case errors.Is(err, ErrUploadFailed):
		return "upload_failed"
	case errors.Is(err, ErrPollTimeout):
		return "poll_timeout"
	case errors.Is(err, ErrJobFailed):
		return "job_failed"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

// HTTPStatus maps the failure class of err onto the status code the API
// returns for it.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAdmissionRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSandboxUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
