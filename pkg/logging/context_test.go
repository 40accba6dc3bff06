package logging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background(), "remember")

	if _, err := uuid.Parse(GetRequestID(ctx)); err != nil {
		t.Errorf("Expected uuid request id, got %q", GetRequestID(ctx))
	}
	if GetOperation(ctx) != "remember" {
		t.Errorf("Expected operation remember, got %s", GetOperation(ctx))
	}
	if _, ok := GetStartTime(ctx); !ok {
		t.Error("Expected start time to be set")
	}
}

func TestNewRequestContext_PreservesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "outer")
	ctx = NewRequestContext(ctx, "inner")

	if GetRequestID(ctx) != "outer" {
		t.Errorf("Expected existing request id to be preserved, got %s", GetRequestID(ctx))
	}
}

func TestContextAccessors_Empty(t *testing.T) {
	ctx := context.Background()

	if GetRequestID(ctx) != "" || GetOperation(ctx) != "" || GetComponent(ctx) != "" {
		t.Error("Expected empty values on a bare context")
	}
	if GetDuration(ctx) != 0 {
		t.Error("Expected zero duration without start time")
	}
}

func TestGetDuration(t *testing.T) {
	ctx := WithStartTime(context.Background(), time.Now().Add(-time.Second))

	if d := GetDuration(ctx); d < time.Second {
		t.Errorf("Expected at least 1s, got %s", d)
	}
}

func TestWithComponent(t *testing.T) {
	ctx := WithComponent(context.Background(), "keyoku.server")
	if GetComponent(ctx) != "keyoku.server" {
		t.Errorf("Expected keyoku.server, got %s", GetComponent(ctx))
	}
}

func TestGenerateID_Unique(t *testing.T) {
	if GenerateID() == GenerateID() {
		t.Error("Expected unique ids")
	}
}
