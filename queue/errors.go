package queue

import "fmt"

// AdmissionError is returned synchronously by Submit when a request is
// rejected before a job is created. Admission failures are never retried
// internally; they are returned to the caller immediately.
type AdmissionError struct {
	Kind    string
	Message string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewInvalidRequestError reports a validation failure on the submitted
// request.
func NewInvalidRequestError(message string) *AdmissionError {
	return &AdmissionError{Kind: "InvalidRequest", Message: message}
}

// NewUserLimitExceededError reports that the submitter already has
// current active jobs at or above max.
func NewUserLimitExceededError(current, max int) *AdmissionError {
	return &AdmissionError{
		Kind:    "UserLimitExceeded",
		Message: fmt.Sprintf("submitter has %d active jobs, limit is %d", current, max),
	}
}

// NewSystemQueueFullError reports that the system-wide queue depth is at
// or above the configured limit.
func NewSystemQueueFullError(depth, limit int) *AdmissionError {
	return &AdmissionError{
		Kind:    "SystemQueueFull",
		Message: fmt.Sprintf("queue depth %d at or above limit %d", depth, limit),
	}
}

// NewEnqueueFailedError reports a work-queue outage during enqueue. Unlike
// the other admission errors this is retriable — the caller may resubmit.
func NewEnqueueFailedError(cause error) *AdmissionError {
	return &AdmissionError{Kind: "EnqueueFailed", Message: cause.Error()}
}

// NewUserLimitCheckFailedError reports that user-limit admission failed
// closed because the authoritative count could not be queried (§4.2).
func NewUserLimitCheckFailedError(cause error) *AdmissionError {
	return &AdmissionError{Kind: "UserLimitCheckFailed", Message: cause.Error()}
}
