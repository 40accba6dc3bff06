package logging

import (
	"fmt"
	"strings"

	"github.com/keyoku-dev/keyoku-go/pkg/config"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LogOutput represents the destination for logs
type LogOutput string

const (
	LogOutputStdout LogOutput = "stdout"
	LogOutputStderr LogOutput = "stderr"
	LogOutputFile   LogOutput = "file"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config represents the logging configuration
type Config struct {
	Level    LogLevel  `yaml:"level" json:"level"`
	Format   LogFormat `yaml:"format" json:"format"`
	Output   LogOutput `yaml:"output" json:"output"`
	FilePath string    `yaml:"filePath,omitempty" json:"filePath,omitempty"`

	// Component-specific log levels, e.g. {"keyoku.client": "debug"}
	ComponentLevels map[string]LogLevel `yaml:"componentLevels,omitempty" json:"componentLevels,omitempty"`

	Masking MaskingConfig `yaml:"masking,omitempty" json:"masking,omitempty"`

	EnableCaller bool `yaml:"enableCaller" json:"enableCaller"`
}

// MaskingConfig defines credential masking rules
type MaskingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Extra attribute names to redact on top of the built-in list
	Fields []string `yaml:"fields" json:"fields"`
	// Redact bearer tokens and key-shaped strings inside free-form values
	MaskAPIKeys bool `yaml:"maskApiKeys" json:"maskApiKeys"`
}

// DefaultConfig returns a default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LogLevelInfo,
		Format: LogFormatText,
		Output: LogOutputStderr,
		Masking: MaskingConfig{
			Enabled:     true,
			MaskAPIKeys: true,
		},
	}
}

// DevelopmentConfig returns a configuration suitable for development.
// Masking stays on: API keys never belong in logs, even locally.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Level = LogLevelDebug
	cfg.EnableCaller = true
	return cfg
}

// FromSettings builds a logging config from the file/env settings
func FromSettings(s config.LoggingSettings) *Config {
	cfg := DefaultConfig()
	if s.Level != "" {
		cfg.Level = LogLevel(strings.ToLower(s.Level))
	}
	if s.Format != "" {
		cfg.Format = LogFormat(strings.ToLower(s.Format))
	}
	if s.Output != "" {
		cfg.Output = LogOutput(strings.ToLower(s.Output))
	}
	cfg.FilePath = s.FilePath
	return cfg
}

// Validate validates the logging configuration
func (c *Config) Validate() error {
	validLevels := map[LogLevel]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	for component, level := range c.ComponentLevels {
		if !validLevels[level] {
			return fmt.Errorf("invalid log level for component %s: %s", component, level)
		}
	}

	if c.Format != LogFormatJSON && c.Format != LogFormatText {
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	switch c.Output {
	case LogOutputStdout, LogOutputStderr, LogOutputFile:
	default:
		return fmt.Errorf("invalid log output: %s", c.Output)
	}

	if c.Output == LogOutputFile && strings.TrimSpace(c.FilePath) == "" {
		return fmt.Errorf("filePath required when output is 'file'")
	}

	return nil
}

// GetLevelForComponent returns the log level for a specific component
func (c *Config) GetLevelForComponent(component string) LogLevel {
	if level, ok := c.ComponentLevels[component]; ok {
		return level
	}
	return c.Level
}
