// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sligter/canctool/internal/bridge"
	"github.com/sligter/canctool/internal/config"
	"github.com/sligter/canctool/internal/conversation"
	"github.com/sligter/canctool/internal/logging"
	"github.com/sligter/canctool/internal/model"
	"github.com/sligter/canctool/internal/provider"
	"github.com/sligter/canctool/internal/retention"
	"github.com/sligter/canctool/internal/server"
	"github.com/sligter/canctool/internal/singleton"
	"github.com/sligter/canctool/internal/store"
	"github.com/sligter/canctool/internal/tokens"
)

var (
	address       = flag.String("address", "", "The address to bind the server to")
	port          = flag.Int("port", 0, "The port to bind the server to")
	logLevel      = flag.String("log-level", "", "Logging level: debug, info, warn, error, fatal")
	logFile       = flag.String("log-file", "", "Log file path (default: stdout)")
	version       = flag.Bool("version", false, "Show version information and exit")
	providersFile = flag.String("providers", "", "Path to the providers JSON file")
	promptBudget  = flag.Int("prompt-budget", 0, "Maximum compiled prompt length in characters (default: 200000)")
	dbPath        = flag.String("db-path", "", "Path to SQLite database for usage accounting (default: ~/.canctool/usage.db)")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg := loadConfig()

	// Show version and exit if requested
	if *version {
		log.Printf("%s version %s", cfg.Server.Name, cfg.Server.Version)
		os.Exit(0)
	}

	// Create a context that will be cancelled on interrupt signal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the application
	app, err := createApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Start the application
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// Wait for termination signal or listener exit
	waitForShutdown(cancel, app)
}

// loadConfig loads configuration from environment and command line flags
func loadConfig() *config.Config {
	// Load .env if present, before reading the environment
	_ = godotenv.Load()

	// Start with defaults
	cfg := config.DefaultConfig()

	// Override with environment variables
	config.FromEnv(cfg)

	// Override with command-line flags
	applyCommandLineFlagsToConfig(cfg)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// applyCommandLineFlagsToConfig applies command line flags to the configuration
func applyCommandLineFlagsToConfig(cfg *config.Config) {
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Logging.FilePath = *logFile
	}
	if *providersFile != "" {
		if err := config.LoadProvidersFile(cfg, *providersFile); err != nil {
			log.Fatalf("Failed to load providers file: %v", err)
		}
	}
	if *promptBudget > 0 {
		cfg.Prompt.Budget = *promptBudget
	}
	if *dbPath != "" {
		cfg.Store.DBPath = *dbPath
	}
}

// Application represents the running application
type Application struct {
	server        *server.Server
	sweeper       *retention.Sweeper
	sweepSchedule string
	usageStore    model.UsageStore
	singleLock    *singleton.Lock
	logger        *logging.Logger
}

// createApp creates a new application instance
func createApp(cfg *config.Config) (*Application, error) {
	logger := buildLogger(cfg)
	logging.SetDefaultLogger(logger)

	// Build the routing table
	registry, err := provider.NewRegistry(&cfg.Backend, logger)
	if err != nil {
		return nil, fmt.Errorf("create provider registry: %w", err)
	}

	app := &Application{logger: logger}

	// Usage store is optional; a secondary instance (lock held elsewhere)
	// serves traffic with usage recording disabled.
	var usageStore model.UsageStore
	var usageReader server.UsageReader
	if cfg.Store.Enabled {
		lock, isPrimary, err := singleton.TryAcquire(cfg.Store.DBPath)
		if err != nil {
			return nil, fmt.Errorf("acquire usage db lock: %w", err)
		}
		if isPrimary {
			sqlStore, err := store.NewSQLiteStore(cfg.Store.DBPath)
			if err != nil {
				_ = lock.Release()
				return nil, fmt.Errorf("create usage store: %w", err)
			}
			usageStore = sqlStore
			usageReader = sqlStore
			app.usageStore = sqlStore
			app.singleLock = lock
			app.sweeper = retention.NewSweeper(&cfg.Retention, sqlStore, logger)
			app.sweepSchedule = cfg.Retention.Schedule
		} else {
			logger.Warnf("Usage database is locked by another instance, usage recording disabled")
		}
	}

	counter := tokens.NewCounter(logger)
	trimmer := conversation.NewTrimmer(cfg.Prompt.Budget)
	b := bridge.New(registry, trimmer, counter, usageStore, logger)
	app.server = server.New(cfg, b, registry, usageReader, logger)

	return app, nil
}

// buildLogger constructs the logger from the logging configuration
func buildLogger(cfg *config.Config) *logging.Logger {
	level := parseLogLevel(cfg.Logging.Level)
	if cfg.Logging.FilePath != "" {
		logger, err := logging.FileLogger(cfg.Logging.FilePath, level)
		if err == nil {
			return logger
		}
		log.Printf("Failed to create file logger, falling back to stdout: %v", err)
	}
	return logging.New(logging.Options{Level: level})
}

func parseLogLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.Debug
	case "info":
		return logging.Info
	case "warn":
		return logging.Warn
	case "error":
		return logging.Error
	case "fatal":
		return logging.Fatal
	default:
		return logging.Info
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context) error {
	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx, a.sweepSchedule); err != nil {
			return fmt.Errorf("start retention sweeper: %w", err)
		}
	}

	if err := a.server.Start(ctx); err != nil {
		return err
	}
	a.logger.Infof("HTTP server started")
	return nil
}

// Stop stops the application
func (a *Application) Stop() error {
	if a.sweeper != nil {
		a.sweeper.Stop()
		a.logger.Infof("Retention sweeper stopped")
	}

	if err := a.server.Stop(); err != nil {
		a.logger.Errorf("Error stopping HTTP server: %v", err)
		return err
	}
	a.logger.Infof("HTTP server stopped")

	if a.usageStore != nil {
		if err := a.usageStore.Close(); err != nil {
			a.logger.Errorf("Error closing usage store: %v", err)
		}
	}
	if a.singleLock != nil {
		_ = a.singleLock.Release()
	}
	return nil
}

// waitForShutdown waits for termination signals or listener exit and performs cleanup
func waitForShutdown(cancel context.CancelFunc, app *Application) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalCh:
		app.logger.Infof("Received termination signal, shutting down...")
	case <-app.server.Done():
		app.logger.Infof("HTTP listener exited, shutting down...")
	}

	// Cancel the context to initiate shutdown
	cancel()

	// Stop the application with a timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	shutdownDone := make(chan struct{})
	go func() {
		if err := app.Stop(); err != nil {
			app.logger.Errorf("Error during shutdown: %v", err)
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		app.logger.Infof("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		app.logger.Warnf("Shutdown timed out")
	}
}
