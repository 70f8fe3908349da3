package api

import (
	"encoding/json"
	"time"

	"splicer/internal/jobs"
	"splicer/internal/media"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job is the transport representation of a job-status record.
type Job struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Progress  int             `json:"progress"`
	Stage     string          `json:"stage,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	ResultURL string          `json:"resultUrl,omitempty"`
	Preview   bool            `json:"preview"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
	UpdatedAt string          `json:"updatedAt,omitempty"`
}

// JobEnvelope wraps a job returned by a submission.
type JobEnvelope struct {
	Job Job `json:"job"`
}

// JobList is the response of GET /api/jobs.
type JobList struct {
	Jobs []Job `json:"jobs"`
}

// ChunkRequest is the body of POST /api/jobs/chunk.
type ChunkRequest struct {
	AudioURL         string `json:"audioUrl"`
	ChunkDurationSec int    `json:"chunkDurationSec,omitempty"`
	TotalDurationMs  int64  `json:"totalDurationMs"`
}

// StitchRequest is the body of POST /api/jobs/stitch.
type StitchRequest struct {
	Segments  []media.Segment `json:"segments"`
	AudioURL  string          `json:"audioUrl,omitempty"`
	OutputKey string          `json:"outputKey,omitempty"`
}

// DurationRequest is the body of POST /api/audio/duration.
type DurationRequest struct {
	AudioURL string `json:"audioUrl"`
}

// DurationResponse reports a probed audio duration.
type DurationResponse struct {
	DurationMs int64 `json:"durationMs"`
}

// Capabilities reports whether full assembly is available.
type Capabilities struct {
	FullPipeline bool   `json:"fullPipeline"`
	Backend      string `json:"backend"`
	Detail       string `json:"detail,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromJob converts a stored job into its transport form.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:        job.ID,
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		Progress:  job.Progress,
		Stage:     job.Stage,
		Message:   job.Message,
		Error:     job.Error,
		ResultURL: job.ResultURL,
		Preview:   job.Preview,
		Result:    job.Result,
		CreatedAt: formatTime(job.CreatedAt),
		UpdatedAt: formatTime(job.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
