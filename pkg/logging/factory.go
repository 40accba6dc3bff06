package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Factory creates and manages loggers for different components
type Factory struct {
	config  *Config
	loggers map[string]*slog.Logger
	mu      sync.RWMutex

	writer  io.Writer
	closer  io.Closer
	handler slog.Handler
	masker  *Masker
}

// NewFactory creates a new logger factory writing to the configured output
func NewFactory(config *Config) (*Factory, error) {
	return newFactory(config, nil)
}

// NewFactoryWithWriter creates a factory that writes to w regardless of the
// configured output. Used by tests and by callers embedding the SDK.
func NewFactoryWithWriter(config *Config, w io.Writer) (*Factory, error) {
	return newFactory(config, w)
}

func newFactory(config *Config, w io.Writer) (*Factory, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	f := &Factory{
		config:  config,
		loggers: make(map[string]*slog.Logger),
		writer:  w,
	}

	// Masker must exist before the handler so ReplaceAttr can use it
	if config.Masking.Enabled {
		f.masker = NewMasker(config.Masking)
	}

	if err := f.initializeHandler(); err != nil {
		return nil, fmt.Errorf("failed to initialize handler: %w", err)
	}

	return f, nil
}

func (f *Factory) initializeHandler() error {
	writer := f.writer
	if writer == nil {
		switch f.config.Output {
		case LogOutputStdout:
			writer = os.Stdout
		case LogOutputFile:
			file, err := os.OpenFile(f.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			writer = file
			f.closer = file
		default:
			writer = os.Stderr
		}
	}

	// The handler passes everything through; component loggers apply levels
	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: f.config.EnableCaller,
	}
	if f.masker != nil {
		opts.ReplaceAttr = f.masker.MaskAttr
	}

	switch f.config.Format {
	case LogFormatText:
		f.handler = slog.NewTextHandler(writer, opts)
	default:
		f.handler = slog.NewJSONHandler(writer, opts)
	}

	return nil
}

// GetLogger returns a logger for a specific component
func (f *Factory) GetLogger(component string) *slog.Logger {
	f.mu.RLock()
	if logger, exists := f.loggers[component]; exists {
		f.mu.RUnlock()
		return logger
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if logger, exists := f.loggers[component]; exists {
		return logger
	}

	level := slogLevel(f.config.GetLevelForComponent(component))
	logger := slog.New(&levelHandler{level: level, next: f.handler}).With(
		slog.String("component", component),
	)

	f.loggers[component] = logger
	return logger
}

// GetMasker returns the data masker, nil when masking is disabled
func (f *Factory) GetMasker() *Masker {
	return f.masker
}

// WithContext decorates a logger with the request-scoped values in ctx
func (f *Factory) WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = f.GetLogger("default")
	}
	return WithContextAttrs(ctx, logger)
}

// UpdateLevel dynamically updates the log level for a component
func (f *Factory) UpdateLevel(component string, level LogLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.config.ComponentLevels == nil {
		f.config.ComponentLevels = make(map[string]LogLevel)
	}
	f.config.ComponentLevels[component] = level

	// Remove cached logger to force recreation with new level
	delete(f.loggers, component)
}

// Level returns the effective level for a component
func (f *Factory) Level(component string) LogLevel {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.config.GetLevelForComponent(component)
}

// Close releases the log file, if any
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// levelHandler filters records below a component's level before they reach
// the shared handler
type levelHandler struct {
	level slog.Leveler
	next  slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.next.Enabled(ctx, level)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, next: h.next.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, next: h.next.WithGroup(name)}
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var (
	globalFactory *Factory
	globalMu      sync.RWMutex
)

// Initialize sets up the global logger factory
func Initialize(config *Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalFactory != nil {
		if err := globalFactory.Close(); err != nil {
			return fmt.Errorf("failed to close existing factory: %w", err)
		}
	}

	factory, err := NewFactory(config)
	if err != nil {
		return err
	}

	globalFactory = factory
	return nil
}

// GetGlobalLogger returns a logger from the global factory
func GetGlobalLogger(component string) *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalFactory == nil {
		return slog.Default()
	}

	return globalFactory.GetLogger(component)
}

// Shutdown closes the global logging factory
func Shutdown() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalFactory == nil {
		return nil
	}

	err := globalFactory.Close()
	globalFactory = nil
	return err
}
