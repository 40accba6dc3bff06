package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestKindFromStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected Kind
	}{
		{http.StatusUnauthorized, KindAuthentication},
		{http.StatusNotFound, KindNotFound},
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusInternalServerError, KindServer},
		{http.StatusServiceUnavailable, KindServer},
		{599, KindServer},
		{http.StatusTeapot, KindGeneric},
		{http.StatusForbidden, KindGeneric},
		{http.StatusConflict, KindGeneric},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := KindFromStatus(tt.status); got != tt.expected {
				t.Errorf("status %d: expected %s, got %s", tt.status, tt.expected, got)
			}
		})
	}
}

func TestFromStatus(t *testing.T) {
	t.Run("server message and code win", func(t *testing.T) {
		err := FromStatus(http.StatusNotFound, nil, "Memory not found", "memory_missing")
		if err.Kind != KindNotFound {
			t.Errorf("expected not_found, got %s", err.Kind)
		}
		if err.Message != "Memory not found" || err.Code != "memory_missing" {
			t.Errorf("unexpected message/code: %q / %q", err.Message, err.Code)
		}
		if err.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", err.StatusCode)
		}
	})

	t.Run("defaults when nothing resolved", func(t *testing.T) {
		tests := []struct {
			status  int
			message string
			code    string
		}{
			{http.StatusUnauthorized, "Invalid API key", "unauthorized"},
			{http.StatusNotFound, "Resource not found", "not_found"},
			{http.StatusBadRequest, "Validation failed", "validation_error"},
			{http.StatusUnprocessableEntity, "Validation failed", "validation_error"},
			{http.StatusInternalServerError, "Server error", "server_error"},
			{http.StatusTeapot, "Request failed with status 418", ""},
		}
		for _, tt := range tests {
			err := FromStatus(tt.status, nil, "", "")
			if err.Message != tt.message {
				t.Errorf("status %d: expected message %q, got %q", tt.status, tt.message, err.Message)
			}
			if err.Code != tt.code {
				t.Errorf("status %d: expected code %q, got %q", tt.status, tt.code, err.Code)
			}
		}
	})

	t.Run("generic carries raw status", func(t *testing.T) {
		err := FromStatus(http.StatusTeapot, nil, "I'm a teapot", "")
		if err.Kind != KindGeneric || err.StatusCode != http.StatusTeapot {
			t.Errorf("unexpected error: %+v", err)
		}
	})

	t.Run("retry after parsed for rate limit", func(t *testing.T) {
		header := http.Header{}
		header.Set("Retry-After", "60")
		err := FromStatus(http.StatusTooManyRequests, header, "", "")
		if err.RetryAfter == nil || *err.RetryAfter != 60 {
			t.Fatalf("expected retry after 60, got %v", err.RetryAfter)
		}
	})

	t.Run("retry after unset when header absent", func(t *testing.T) {
		err := FromStatus(http.StatusTooManyRequests, http.Header{}, "", "")
		if err.RetryAfter != nil {
			t.Errorf("expected nil retry after, got %d", *err.RetryAfter)
		}
	})

	t.Run("retry after ignored for other kinds", func(t *testing.T) {
		header := http.Header{}
		header.Set("Retry-After", "10")
		err := FromStatus(http.StatusServiceUnavailable, header, "", "")
		if err.RetryAfter != nil {
			t.Error("retry after should only be read for 429")
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value    string
		expected *int
	}{
		{"", nil},
		{"  ", nil},
		{"abc", nil},
		{"-5", nil},
		{"Wed, 21 Oct 2015 07:28:00 GMT", nil},
		{"0", intPtr(0)},
		{"120", intPtr(120)},
		{" 7 ", intPtr(7)},
	}

	for _, tt := range tests {
		got := ParseRetryAfter(tt.value)
		switch {
		case tt.expected == nil && got != nil:
			t.Errorf("%q: expected nil, got %d", tt.value, *got)
		case tt.expected != nil && (got == nil || *got != *tt.expected):
			t.Errorf("%q: expected %d, got %v", tt.value, *tt.expected, got)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindAuthentication, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindServer, http.StatusInternalServerError},
		{KindJobFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.kind, tt.expected, got)
		}
	}
}

func TestToPayload(t *testing.T) {
	status, payload := ToPayload(New(KindValidation, "content is required"))
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if payload.Error.Message != "content is required" || payload.Error.Code != "validation_error" {
		t.Errorf("unexpected payload: %+v", payload.Error)
	}

	status, payload = ToPayload(errors.New("disk on fire"))
	if status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", status)
	}
	if payload.Error.Message != "Server error" {
		t.Errorf("foreign errors should not leak, got %q", payload.Error.Message)
	}

	status, _ = ToPayload(New(KindGeneric, "conflict").WithStatus(http.StatusConflict))
	if status != http.StatusConflict {
		t.Errorf("explicit status should win, got %d", status)
	}
}

func intPtr(v int) *int {
	return &v
}
