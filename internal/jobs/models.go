package jobs

import (
	"encoding/json"
	"time"
)

// Kind identifies what a job does.
type Kind string

const (
	KindChunk  Kind = "chunk"
	KindStitch Kind = "stitch"
)

// Valid reports whether k is a known job kind.
func (k Kind) Valid() bool {
	return k == KindChunk || k == KindStitch
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus maps a user supplied value onto a Status.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(raw), true
	}
	return "", false
}

// Job is one persisted job-status record.
type Job struct {
	ID        string
	Kind      Kind
	Status    Status
	Progress  int
	Stage     string
	Message   string
	Error     string
	ResultURL string
	Preview   bool
	Request   json.RawMessage
	Result    json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListOptions filters List results. A zero Limit means the default page size.
type ListOptions struct {
	Limit  int
	Status Status
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return defaultListLimit
	case o.Limit > maxListLimit:
		return maxListLimit
	default:
		return o.Limit
	}
}

func clampProgress(p int) int {
	return max(0, min(100, p))
}
