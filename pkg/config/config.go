package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Default and Load
const (
	DefaultBaseURL      = "https://api.keyoku.dev"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultServerAddr   = ":8787"
)

// Environment variables that override file values
const (
	EnvAPIKey   = "KEYOKU_API_KEY"
	EnvBaseURL  = "KEYOKU_BASE_URL"
	EnvEntityID = "KEYOKU_ENTITY_ID"
)

type Settings struct {
	APIKey   string          `yaml:"apiKey"`
	BaseURL  string          `yaml:"baseUrl"`
	Timeout  time.Duration   `yaml:"timeout"`
	EntityID string          `yaml:"entityId"`
	HTTP2    bool            `yaml:"http2"`
	Poll     PollSettings    `yaml:"poll"`
	Logging  LoggingSettings `yaml:"logging"`
	Server   ServerSettings  `yaml:"server"`
}

// PollSettings controls how long and how often job waits poll
type PollSettings struct {
	Interval time.Duration `yaml:"interval"`
	// Timeout of zero means wait until the caller's context ends
	Timeout time.Duration `yaml:"timeout"`
}

type LoggingSettings struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"filePath"`
}

// ServerSettings configures the local development server
type ServerSettings struct {
	Addr               string         `yaml:"addr"`
	APIKey             string         `yaml:"apiKey"`
	StorageType        string         `yaml:"storageType"`
	StoragePath        string         `yaml:"storagePath"`
	Sqlite             SqliteSettings `yaml:"sqlite"`
	RateLimitPerMinute int            `yaml:"rateLimitPerMinute"`
	ProcessingDelay    time.Duration  `yaml:"processingDelay"`
	SeedFile           string         `yaml:"seedFile"`
}

type SqliteSettings struct {
	WALMode bool `yaml:"walMode"`
}

// Default returns settings with every default filled in and no API key
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Poll.Interval == 0 {
		s.Poll.Interval = DefaultPollInterval
	}
	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if s.Logging.Format == "" {
		s.Logging.Format = "text"
	}
	if s.Logging.Output == "" {
		s.Logging.Output = "stderr"
	}
	if s.Server.Addr == "" {
		s.Server.Addr = DefaultServerAddr
	}
}

// ApplyEnv overrides file values with KEYOKU_* environment variables
func (s *Settings) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		s.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		s.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEntityID)); v != "" {
		s.EntityID = v
	}
}

// Validate validates the configuration settings
func (s *Settings) Validate() error {
	// Empty log level is allowed and will use default
	if s.Logging.Level != "" {
		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		normalizedLogLevel := strings.ToLower(s.Logging.Level)
		if !validLogLevels[normalizedLogLevel] {
			return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got '%s'", s.Logging.Level)
		}
		s.Logging.Level = normalizedLogLevel
	}

	if s.Logging.Format != "" {
		normalizedFormat := strings.ToLower(s.Logging.Format)
		if normalizedFormat != "text" && normalizedFormat != "json" {
			return fmt.Errorf("logging.format must be one of [text, json], got '%s'", s.Logging.Format)
		}
		s.Logging.Format = normalizedFormat
	}

	if s.BaseURL != "" && !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		return fmt.Errorf("baseUrl must start with http:// or https://, got '%s'", s.BaseURL)
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")

	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", s.Timeout)
	}
	if s.Poll.Interval < 0 {
		return fmt.Errorf("poll.interval must not be negative, got %s", s.Poll.Interval)
	}
	if s.Poll.Timeout < 0 {
		return fmt.Errorf("poll.timeout must not be negative, got %s", s.Poll.Timeout)
	}

	// Validate StorageType - must be one of [memory, sqlite] (case-insensitive)
	validStorageTypes := map[string]bool{
		"memory": true,
		"sqlite": true,
		"":       true, // Empty defaults to memory
	}
	normalizedStorageType := strings.ToLower(s.Server.StorageType)
	if !validStorageTypes[normalizedStorageType] {
		return fmt.Errorf("server.storageType must be one of [memory, sqlite], got '%s'", s.Server.StorageType)
	}
	s.Server.StorageType = normalizedStorageType

	if normalizedStorageType == "sqlite" && strings.TrimSpace(s.Server.StoragePath) == "" {
		return fmt.Errorf("server.storagePath cannot be empty when storageType is sqlite")
	}

	if s.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rateLimitPerMinute must not be negative, got %d", s.Server.RateLimitPerMinute)
	}
	if s.Server.ProcessingDelay < 0 {
		return fmt.Errorf("server.processingDelay must not be negative, got %s", s.Server.ProcessingDelay)
	}

	return nil
}

// Load reads a YAML file, applies environment overrides and defaults, and
// validates the result. An empty path skips the file.
func Load(path string) (*Settings, error) {
	var settings Settings

	if path != "" {
		bytes, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(bytes, &settings); err != nil {
			return nil, err
		}
	}

	settings.ApplyEnv()
	settings.applyDefaults()

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &settings, nil
}
