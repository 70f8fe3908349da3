package poller

import (
	"errors"
	"fmt"
	"time"

	"splicer/internal/services"
)

// ErrMissingResult means the job completed without a result URL.
var ErrMissingResult = errors.New("job completed without a result url")

// JobFailedError carries the failure message recorded on the job.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return e.Message
}

func (e *JobFailedError) Unwrap() error { return services.ErrJobFailed }

// TimeoutError reports that polling stopped before a terminal state. The job
// may still be running.
type TimeoutError struct {
	JobID    string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish after %d polls (%s); its state is unknown",
		e.JobID, e.Attempts, e.Elapsed.Round(time.Second))
}

func (e *TimeoutError) Unwrap() error { return services.ErrPollTimeout }
