// Package pipeline drives the multi-stage external pipeline that turns an
// admitted job into a finished sprite set: AI-provider calls, retries, and
// progress publication.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for pipeline-stage failure classification, per the error
// taxonomy below. Use errors.Is(err, ErrXxx) for typed assertions.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrTimeout        = errors.New("operation timed out")
	ErrNetwork        = errors.New("network error")
	ErrServerError    = errors.New("server error")
	ErrValidation     = errors.New("validation failed")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknown        = errors.New("unknown error")
)

// retryable reports whether the sentinel error's category is retryable per
// the taxonomy: RateLimited, Timeout, Network, and ServerError are; all
// others are not.
var retryable = map[error]bool{
	ErrAuthentication: false,
	ErrRateLimited:    true,
	ErrQuotaExceeded:  false,
	ErrTimeout:        true,
	ErrNetwork:        true,
	ErrServerError:    true,
	ErrValidation:     false,
	ErrInvalidRequest: false,
	ErrUnknown:        false,
}

// StageError wraps an external pipeline-stage failure with its
// classification. Preserves the original error in the chain via Unwrap
// for errors.As inspection.
type StageError struct {
	// Kind is the sentinel error for classification (e.g., ErrTimeout).
	Kind error
	// Stage is the pipeline stage that failed (e.g., "generate", "upscale").
	Stage string
	// RetryAfter is a server-provided delay hint. Nothing in this package
	// sets it, and RunWithRetry does not read it: retries always wait the
	// policy's own backoff.
	RetryAfter int // seconds, 0 means unspecified
	// Err is the underlying error.
	Err error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Retryable reports whether this category of failure should be retried.
func (e *StageError) Retryable() bool {
	return retryable[e.Kind]
}

// NewStageError creates a classified stage error.
func NewStageError(kind error, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// WrapStageError classifies and wraps a stage-call error. Returns nil if
// err is nil.
func WrapStageError(err error, stage string) error {
	if err == nil {
		return nil
	}
	return NewStageError(classify(err), stage, err)
}

// classifierEntry pairs a set of message substrings with a sentinel error.
// Order matters: more-specific patterns must appear before general ones.
type classifierEntry struct {
	patterns []string
	kind     error
}

var classifierTable = []classifierEntry{
	{[]string{"invalid request", "malformed", "bad request", "400"}, ErrInvalidRequest},
	{[]string{"validation", "field required", "out of range", "422"}, ErrValidation},
	{[]string{"quota exceeded", "insufficient credit", "402"}, ErrQuotaExceeded},
	{[]string{"rate limit", "too many requests", "429", "SlowDown"}, ErrRateLimited},
	{[]string{"unauthorized", "invalid api key", "expired token", "401", "403"}, ErrAuthentication},
	{[]string{"timeout", "timed out", "deadline exceeded"}, ErrTimeout},
	{[]string{"connection refused", "no route to host", "network unreachable",
		"dns", "dial tcp", "i/o timeout", "eof"}, ErrNetwork},
	{[]string{"internal server error", "502", "503", "504", "500"}, ErrServerError},
}

// classify determines the appropriate sentinel error for err. Typed
// timeout errors are checked before the message-pattern table.
func classify(err error) error {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	errStr := err.Error()
	for _, entry := range classifierTable {
		if containsAny(errStr, entry.patterns...) {
			return entry.kind
		}
	}
	return ErrUnknown
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
