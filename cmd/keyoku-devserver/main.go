// Command keyoku-devserver runs a local Keyoku API for development and
// integration testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keyoku-dev/keyoku-go/internal/server"
	"github.com/keyoku-dev/keyoku-go/internal/storage"
	"github.com/keyoku-dev/keyoku-go/internal/transport"
	"github.com/keyoku-dev/keyoku-go/pkg/config"
	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], nil); err != nil {
		log.Fatalf("keyoku-devserver: %v", err)
	}
}

// run starts the server and blocks until ctx ends. listening, when set, is
// called with the bound address before requests are served.
func run(ctx context.Context, args []string, listening func(net.Addr)) error {
	fs := flag.NewFlagSet("keyoku-devserver", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	apiKey := fs.String("api-key", "", "API key clients must present (overrides server.apiKey)")
	seedFile := fs.String("seed", "", "YAML file with entities and relationships to load at startup")
	delay := fs.Duration("processing-delay", -1, "Delay before each job state transition")
	cors := fs.Bool("cors", false, "Allow cross-origin requests")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	settings := cfg.Server
	if *addr != "" {
		settings.Addr = *addr
	}
	if *apiKey != "" {
		settings.APIKey = *apiKey
	}
	if settings.APIKey == "" {
		settings.APIKey = cfg.APIKey
	}
	if settings.APIKey == "" {
		return fmt.Errorf("an API key is required: set server.apiKey, %s or -api-key", config.EnvAPIKey)
	}
	if *seedFile != "" {
		settings.SeedFile = *seedFile
	}
	if *delay >= 0 {
		settings.ProcessingDelay = *delay
	}

	factory, err := logging.NewFactory(logging.FromSettings(cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer factory.Close()
	logger := factory.GetLogger("devserver")

	backend, err := storage.NewBackend(&settings)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	defer backend.Close()

	opts := server.OptionsFromSettings(&settings)
	opts.Logger = factory.GetLogger("server")
	opts.LogFactory = factory
	srv := server.New(backend, opts)
	defer srv.Close()

	if settings.SeedFile != "" {
		seed, err := server.LoadSeedFile(settings.SeedFile)
		if err != nil {
			return err
		}
		if err := srv.Seed(ctx, seed); err != nil {
			return fmt.Errorf("failed to seed graph: %w", err)
		}
		logger.Info("Seed loaded",
			slog.String("file", settings.SeedFile),
			slog.Int("entities", len(seed.Entities)),
			slog.Int("relationships", len(seed.Relationships)),
		)
	}

	httpServer := transport.NewHTTPServer(transport.ServerOptions{
		Addr:         settings.Addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		EnableCORS:   *cors,
	}, factory.GetLogger("transport"))

	bound, err := httpServer.Listen()
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", settings.Addr, err)
	}
	logger.Info("Keyoku dev server ready",
		slog.String("address", bound.String()),
		slog.String("storage", backendName(settings.StorageType)),
		slog.Int("rate_limit_per_minute", settings.RateLimitPerMinute),
	)
	if listening != nil {
		listening(bound)
	}

	return httpServer.Start(ctx, srv.Handler())
}

func backendName(storageType string) string {
	if storageType == "" {
		return "memory"
	}
	return storageType
}
