package logging

import (
	"strings"
	"testing"

	"github.com/keyoku-dev/keyoku-go/pkg/config"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "default is valid",
			modify: func(c *Config) {},
		},
		{
			name:   "invalid level",
			modify: func(c *Config) { c.Level = "verbose" },
			errMsg: "invalid log level",
		},
		{
			name:   "invalid component level",
			modify: func(c *Config) { c.ComponentLevels = map[string]LogLevel{"keyoku.client": "loud"} },
			errMsg: "invalid log level for component keyoku.client",
		},
		{
			name:   "invalid format",
			modify: func(c *Config) { c.Format = "xml" },
			errMsg: "invalid log format",
		},
		{
			name:   "invalid output",
			modify: func(c *Config) { c.Output = "syslog" },
			errMsg: "invalid log output",
		},
		{
			name:   "file output without path",
			modify: func(c *Config) { c.Output = LogOutputFile },
			errMsg: "filePath required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestDevelopmentConfig(t *testing.T) {
	cfg := DevelopmentConfig()

	if cfg.Level != LogLevelDebug {
		t.Errorf("Expected debug level, got %s", cfg.Level)
	}
	if !cfg.Masking.Enabled {
		t.Error("Masking should stay enabled in development")
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.LoggingSettings{Level: "WARN", Format: "json", Output: "stdout"})

	if cfg.Level != LogLevelWarn || cfg.Format != LogFormatJSON || cfg.Output != LogOutputStdout {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	empty := FromSettings(config.LoggingSettings{})
	if empty.Level != LogLevelInfo {
		t.Errorf("Expected default level, got %s", empty.Level)
	}
}

func TestGetLevelForComponent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ComponentLevels = map[string]LogLevel{"keyoku.server": LogLevelError}

	if got := cfg.GetLevelForComponent("keyoku.server"); got != LogLevelError {
		t.Errorf("Expected error, got %s", got)
	}
	if got := cfg.GetLevelForComponent("keyoku.client"); got != LogLevelInfo {
		t.Errorf("Expected info, got %s", got)
	}
}
