package errors

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Default messages and codes used when the server does not supply its own
var (
	defaultMessages = map[Kind]string{
		KindAuthentication: "Invalid API key",
		KindNotFound:       "Resource not found",
		KindValidation:     "Validation failed",
		KindRateLimit:      "Rate limit exceeded",
		KindServer:         "Server error",
	}

	defaultCodes = map[Kind]string{
		KindAuthentication: "unauthorized",
		KindNotFound:       "not_found",
		KindValidation:     "validation_error",
		KindRateLimit:      "rate_limit",
		KindServer:         "server_error",
	}
)

// KindFromStatus maps an HTTP status code to an error kind
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindGeneric
	}
}

// DefaultMessage returns the message used for a kind when neither the server
// payload nor the status text provides one
func DefaultMessage(kind Kind, status int) string {
	if msg, ok := defaultMessages[kind]; ok {
		return msg
	}
	return fmt.Sprintf("Request failed with status %d", status)
}

// FromStatus classifies a failed HTTP exchange. It is a pure function of its
// inputs: message and code are whatever the caller resolved from the response
// body (either may be empty).
func FromStatus(status int, header http.Header, message, code string) *Error {
	kind := KindFromStatus(status)

	if strings.TrimSpace(message) == "" {
		message = DefaultMessage(kind, status)
	}
	if code == "" {
		code = defaultCodes[kind]
	}

	e := &Error{
		Kind:       kind,
		Message:    message,
		Code:       code,
		StatusCode: status,
	}

	if kind == KindRateLimit && header != nil {
		e.RetryAfter = ParseRetryAfter(header.Get("Retry-After"))
	}

	return e
}

// ParseRetryAfter parses a Retry-After header given in integer seconds. HTTP
// dates and garbage yield nil, never zero.
func ParseRetryAfter(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return nil
	}
	return &seconds
}

// HTTPStatus returns the HTTP status a server should answer with for a kind
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindClientTimeout:
		return http.StatusRequestTimeout
	case KindCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// PayloadError is the body of an error response
type PayloadError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Payload is the JSON envelope the service uses for failures:
// {"error": {"message": "...", "code": "..."}}
type Payload struct {
	Error *PayloadError `json:"error"`
}

// ToPayload converts an error into the wire envelope and its HTTP status
func ToPayload(err error) (int, Payload) {
	e, ok := As(err)
	if !ok {
		e = Wrap(err, KindServer, DefaultMessage(KindServer, 0))
	}

	code := e.Code
	if code == "" {
		code = defaultCodes[e.Kind]
	}

	status := HTTPStatus(e.Kind)
	if e.StatusCode != 0 {
		status = e.StatusCode
	}

	return status, Payload{
		Error: &PayloadError{
			Message: e.Message,
			Code:    code,
		},
	}
}
