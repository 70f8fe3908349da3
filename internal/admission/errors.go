package admission

import "splicer/internal/services"

// RejectedError reports a request that exceeded a ceiling. The message is
// meant for end users and names the measured value and the limit.
type RejectedError struct {
	Reason    string
	URL       string
	SizeBytes int64
	LimitMB   float64
}

func (e *RejectedError) Error() string {
	return e.Reason
}

func (e *RejectedError) Unwrap() error {
	return services.ErrAdmissionRejected
}
