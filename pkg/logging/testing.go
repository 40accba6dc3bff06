package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestLogger captures JSON log output for assertions in tests
type TestLogger struct {
	mu     sync.Mutex
	buffer bytes.Buffer
	masker *Masker
}

// TestLogEntry represents a captured log entry
type TestLogEntry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	RequestID string
	Operation string
	Error     string
	Attrs     map[string]interface{}
}

// NewTestLogger creates a new test logger with masking enabled, so tests
// observe exactly what production output would contain
func NewTestLogger() *TestLogger {
	return &TestLogger{
		masker: NewMasker(DefaultConfig().Masking),
	}
}

// Write implements io.Writer so the logger can back a Factory
func (tl *TestLogger) Write(p []byte) (int, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buffer.Write(p)
}

// GetHandler returns a slog.Handler that writes to this test logger
func (tl *TestLogger) GetHandler() slog.Handler {
	return slog.NewJSONHandler(tl, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: tl.masker.MaskAttr,
	})
}

// GetLogger returns a slog.Logger that writes to this test logger
func (tl *TestLogger) GetLogger() *slog.Logger {
	return slog.New(tl.GetHandler())
}

// GetEntries returns all captured log entries
func (tl *TestLogger) GetEntries() []TestLogEntry {
	tl.mu.Lock()
	content := tl.buffer.String()
	tl.mu.Unlock()

	var entries []TestLogEntry
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}

		entry := TestLogEntry{Attrs: make(map[string]interface{})}
		for key, value := range raw {
			s, _ := value.(string)
			switch key {
			case "time":
				entry.Time, _ = time.Parse(time.RFC3339Nano, s)
			case "level":
				entry.Level = s
			case "msg":
				entry.Message = s
			case "component":
				entry.Component = s
			case "request_id":
				entry.RequestID = s
			case "operation":
				entry.Operation = s
			case "error":
				entry.Error = s
			default:
				entry.Attrs[key] = value
			}
		}
		entries = append(entries, entry)
	}

	return entries
}

// GetEntriesWithMessage returns log entries containing the specified message
func (tl *TestLogger) GetEntriesWithMessage(message string) []TestLogEntry {
	var filtered []TestLogEntry
	for _, entry := range tl.GetEntries() {
		if strings.Contains(entry.Message, message) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// Raw returns the unparsed captured output
func (tl *TestLogger) Raw() string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buffer.String()
}

// Clear resets the captured output
func (tl *TestLogger) Clear() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.buffer.Reset()
}

// AssertLogged verifies that an entry with the level and message was captured
func (tl *TestLogger) AssertLogged(t *testing.T, level, message string) {
	t.Helper()

	entries := tl.GetEntries()
	for _, entry := range entries {
		if strings.EqualFold(entry.Level, level) && strings.Contains(entry.Message, message) {
			return
		}
	}

	t.Errorf("Expected log entry with level=%s message=%s not found. Captured entries:", level, message)
	for i, entry := range entries {
		t.Errorf("  [%d] %s: %s", i, entry.Level, entry.Message)
	}
}

// AssertNotLogged verifies that no entry with the level and message was captured
func (tl *TestLogger) AssertNotLogged(t *testing.T, level, message string) {
	t.Helper()

	for _, entry := range tl.GetEntries() {
		if strings.EqualFold(entry.Level, level) && strings.Contains(entry.Message, message) {
			t.Errorf("Unexpected log entry found with level=%s message=%s", level, message)
			return
		}
	}
}

// AssertNotContains verifies that secret never appears in the raw output
func (tl *TestLogger) AssertNotContains(t *testing.T, secret string) {
	t.Helper()

	if strings.Contains(tl.Raw(), secret) {
		t.Errorf("log output leaked %q", secret)
	}
}
