package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind discriminates the failure families a client call can end in
type Kind string

// Error kinds. The first six are classified from HTTP responses, the rest are
// raised on the client side.
const (
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindRateLimit      Kind = "rate_limit"
	KindServer         Kind = "server"
	KindGeneric        Kind = "generic"

	KindClientTimeout     Kind = "client_timeout"
	KindTransport         Kind = "transport"
	KindMalformedResponse Kind = "malformed_response"
	KindJobFailed         Kind = "job_failed"
	KindJobWaitTimeout    Kind = "job_wait_timeout"
	KindCanceled          Kind = "canceled"
	KindConfiguration     Kind = "configuration"
)

// Error is the single error type returned by the SDK. Fields other than Kind
// and Message are only populated where they make sense for the kind:
// RetryAfter for rate limits, JobID for job failures and wait timeouts,
// StatusCode for anything classified from an HTTP response.
type Error struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
	JobID      string `json:"jobId,omitempty"`
	Internal   error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Internal
}

// WithCode sets the machine-readable code
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithStatus records the HTTP status the error was classified from
func (e *Error) WithStatus(status int) *Error {
	e.StatusCode = status
	return e
}

// WithRetryAfter records the server's retry hint in seconds
func (e *Error) WithRetryAfter(seconds int) *Error {
	e.RetryAfter = &seconds
	return e
}

// WithJobID records the job an error refers to
func (e *Error) WithJobID(jobID string) *Error {
	e.JobID = jobID
	return e
}

// New creates a new Error
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an Error of the given kind
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind:     kind,
		Message:  message,
		Internal: err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}

	return Wrap(err, kind, fmt.Sprintf(format, args...))
}

// As returns the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is checks if an error has a specific kind
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	return e.Kind == kind
}

// IsAny checks if an error matches any of the provided kinds
func IsAny(err error, kinds ...Kind) bool {
	for _, kind := range kinds {
		if Is(err, kind) {
			return true
		}
	}
	return false
}

// GetKind extracts the kind from an error. Errors that did not come from
// this package report KindGeneric.
func GetKind(err error) Kind {
	if err == nil {
		return ""
	}

	e, ok := As(err)
	if !ok {
		return KindGeneric
	}
	return e.Kind
}

// GetMessage returns the human-readable message without the wrapped cause
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	e, ok := As(err)
	if !ok {
		return err.Error()
	}
	return e.Message
}

// GetInternal returns the wrapped cause for logging
func GetInternal(err error) error {
	if err == nil {
		return nil
	}

	e, ok := As(err)
	if !ok {
		return err
	}

	if e.Internal != nil {
		return e.Internal
	}
	return e
}

// RetryAfter returns the rate-limit retry hint carried by err, if any
func RetryAfter(err error) (int, bool) {
	e, ok := As(err)
	if !ok || e.Kind != KindRateLimit || e.RetryAfter == nil {
		return 0, false
	}
	return *e.RetryAfter, true
}

// IsRetryable reports whether a caller-side retry could plausibly succeed.
// The SDK never retries on its own.
func IsRetryable(err error) bool {
	return IsAny(err, KindRateLimit, KindServer, KindClientTimeout, KindTransport)
}

// JobFailed creates the error surfaced when a job reaches the failed state
func JobFailed(jobID, reason string) *Error {
	if reason == "" {
		reason = "Job failed"
	}
	return New(KindJobFailed, reason).WithJobID(jobID)
}

// Configuration creates a configuration error
func Configuration(format string, args ...interface{}) *Error {
	return Newf(KindConfiguration, format, args...)
}
