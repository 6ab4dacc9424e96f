// Package storage persists finished creature generation results durably,
// outside the fingerprint cache.
// This file classifies storage failures into sentinel errors so callers
// can use errors.Is/As instead of string matching. Classification prefers
// the AWS SDK's structured error types (smithy.APIError's code, the HTTP
// response status) since the one production Store backend is S3; the
// substring table is a fallback for the in-memory Store used in tests and
// for any error that reaches here without a smithy type attached.
package storage

import (
	"errors"
	"fmt"
	"strings"

	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Sentinel errors for storage failure classification.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	ErrAuth             = errors.New("authentication failed")
	ErrAccessDenied     = errors.New("access denied")
	ErrNetwork          = errors.New("network error")
)

// Error wraps an underlying error with storage classification. It
// preserves the original error in the chain for inspection via errors.As.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewError creates a classified storage error.
func NewError(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// WrapWriteError classifies and wraps a Put failure. Returns nil if err is nil.
func WrapWriteError(err error, path string) error {
	if err == nil {
		return nil
	}
	return NewError(classifyError(err), "write", path, err)
}

// WrapReadError classifies and wraps a Get failure. Returns nil if err is nil.
func WrapReadError(err error, path string) error {
	if err == nil {
		return nil
	}
	return NewError(classifyError(err), "read", path, err)
}

// errorPattern pairs a set of message substrings with a sentinel error.
// Order matters: more-specific patterns must appear before general ones.
type errorPattern struct {
	patterns []string
	kind     error
}

// classifierTable is the fallback path for errors with no smithy type
// attached (the in-memory Store's os.ErrNotExist-flavored errors, or
// anything that reaches WrapReadError/WrapWriteError from outside the S3
// client). ErrAccessDenied appears before ErrPermissionDenied so that
// "AccessDenied"/"Forbidden"/"403" is not shadowed by "access denied".
var classifierTable = []errorPattern{
	{[]string{"AccessDenied", "Forbidden", "403"}, ErrAccessDenied},
	{[]string{"permission denied", "EACCES"}, ErrPermissionDenied},
	{[]string{"no such file", "does not exist", "not found", "ENOENT", "404", "NoSuchKey"}, ErrNotFound},
	{[]string{"no space left", "disk full", "ENOSPC", "quota exceeded"}, ErrDiskFull},
	{[]string{"timeout", "timed out", "deadline exceeded"}, ErrTimeout},
	{[]string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}, ErrThrottled},
	{[]string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}, ErrAuth},
	{[]string{"connection refused", "no route to host", "network unreachable",
		"DNS", "dial tcp", "i/o timeout"}, ErrNetwork},
}

// apiCodeKinds maps S3 API error codes (smithy.APIError.ErrorCode()) to
// sentinels directly, without relying on the message text at all. This is
// the primary classification path for the S3Store; it only misses on
// codes this table hasn't seen yet, which fall through to the HTTP status
// and then the substring table above.
var apiCodeKinds = map[string]error{
	"AccessDenied":                ErrAccessDenied,
	"NoSuchKey":                   ErrNotFound,
	"NoSuchBucket":                ErrNotFound,
	"NotFound":                    ErrNotFound,
	"SlowDown":                    ErrThrottled,
	"TooManyRequests":             ErrThrottled,
	"RequestThrottled":            ErrThrottled,
	"ExpiredToken":                ErrAuth,
	"InvalidAccessKeyId":          ErrAuth,
	"SignatureDoesNotMatch":       ErrAuth,
	"UnrecognizedClientException": ErrAuth,
	"RequestTimeout":              ErrTimeout,
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := apiCodeKinds[apiErr.ErrorCode()]; ok {
			return kind
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		if kind, ok := classifyHTTPStatus(respErr.HTTPStatusCode()); ok {
			return kind
		}
	}

	errStr := err.Error()
	for _, entry := range classifierTable {
		if containsAny(errStr, entry.patterns...) {
			return entry.kind
		}
	}

	return errors.New("storage error")
}

// classifyHTTPStatus maps an S3 response status code to a sentinel when
// the API error code didn't already resolve one (e.g. a 5xx with a
// generic or absent error code).
func classifyHTTPStatus(status int) (error, bool) {
	switch status {
	case 401:
		return ErrAuth, true
	case 403:
		return ErrAccessDenied, true
	case 404:
		return ErrNotFound, true
	case 408:
		return ErrTimeout, true
	case 429:
		return ErrThrottled, true
	default:
		return nil, false
	}
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
