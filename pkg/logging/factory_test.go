package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		expectErr bool
	}{
		{name: "nil config uses default", config: nil},
		{name: "default config", config: DefaultConfig()},
		{name: "development config", config: DevelopmentConfig()},
		{name: "invalid config", config: &Config{Level: "nope"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewFactoryWithWriter(tt.config, &bytes.Buffer{})
			if tt.expectErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if factory == nil {
				t.Fatal("Expected factory to be created")
			}
		})
	}
}

func TestFactory_GetLoggerCaches(t *testing.T) {
	factory, err := NewFactoryWithWriter(DefaultConfig(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}

	first := factory.GetLogger("keyoku.client")
	second := factory.GetLogger("keyoku.client")
	if first != second {
		t.Error("Expected the same logger instance for a component")
	}
}

func TestFactory_ComponentLevels(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = LogFormatJSON
	cfg.ComponentLevels = map[string]LogLevel{"keyoku.client": LogLevelDebug}

	factory, err := NewFactoryWithWriter(cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}

	factory.GetLogger("keyoku.client").Debug("client debug")
	factory.GetLogger("keyoku.server").Debug("server debug")

	out := buf.String()
	if !strings.Contains(out, "client debug") {
		t.Error("Expected debug output for component with debug level")
	}
	if strings.Contains(out, "server debug") {
		t.Error("Debug output should be filtered at info level")
	}
	if !strings.Contains(out, `"component":"keyoku.client"`) {
		t.Error("Expected component attribute")
	}
}

func TestFactory_UpdateLevel(t *testing.T) {
	var buf bytes.Buffer
	factory, err := NewFactoryWithWriter(DefaultConfig(), &buf)
	if err != nil {
		t.Fatal(err)
	}

	factory.GetLogger("jobs").Debug("hidden")
	factory.UpdateLevel("jobs", LogLevelDebug)
	factory.GetLogger("jobs").Debug("visible")

	if got := factory.Level("jobs"); got != LogLevelDebug {
		t.Errorf("Expected level debug for jobs, got %s", got)
	}
	if got := factory.Level("other"); got != LogLevelInfo {
		t.Errorf("Expected level info for other, got %s", got)
	}

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible") {
		t.Errorf("Unexpected output after level update: %s", out)
	}
}

func TestFactory_MasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	factory, err := NewFactoryWithWriter(DefaultConfig(), &buf)
	if err != nil {
		t.Fatal(err)
	}

	factory.GetLogger("keyoku.client").Info("configured",
		"api_key", "sk-live-abcdef123456",
		"note", "header was Bearer sk-live-abcdef123456",
	)

	if strings.Contains(buf.String(), "sk-live-abcdef123456") {
		t.Errorf("API key leaked into log output: %s", buf.String())
	}
}

func TestFactory_WithContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = LogFormatJSON
	factory, err := NewFactoryWithWriter(cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-42")
	factory.WithContext(ctx, nil).Info("hello")

	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Errorf("Expected request_id in output, got %s", buf.String())
	}
}

func TestFactory_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyoku.log")
	cfg := DefaultConfig()
	cfg.Output = LogOutputFile
	cfg.FilePath = path

	factory, err := NewFactory(cfg)
	if err != nil {
		t.Fatal(err)
	}
	factory.GetLogger("test").Info("to file")
	if err := factory.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("Expected log line in file, got %q", data)
	}
}

func TestGlobalFactory(t *testing.T) {
	if err := Initialize(DefaultConfig()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if GetGlobalLogger("test") == nil {
		t.Error("Expected a logger from the global factory")
	}
	if err := Shutdown(); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if GetGlobalLogger("test") == nil {
		t.Error("Expected fallback logger after shutdown")
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), 12) {
		t.Error("Discard logger should not be enabled at any level")
	}
}
