package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/stitchr/internal/services"
	"github.com/desertthunder/stitchr/internal/shared"
	"github.com/urfave/cli/v3"
)

// EnvConfigPath overrides the default config.toml location.
const EnvConfigPath = "STITCHR_CONFIG"

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv(EnvConfigPath)
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	if err := shared.LoadEnv(config, ".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	shared.SetLogLevel(logger, shared.ParseLevel(config.Log.Level))
	if config.Log.File != "" {
		if fileLogger, err := shared.NewFileLogger(config.Log.File, config.Log); err == nil {
			logger = fileLogger
		} else {
			logger.Warn("failed to open log file, logging to stderr", "error", err)
		}
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		logger.Warn("database unavailable, credentials will not persist", "error", err)
		db = nil
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		DB:         db,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "stitchr",
		Usage:    "Browse, edit and export Spotify playlists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.Run(ctx, os.Args)
	stop()
	runner.Close()

	if err != nil {
		if errors.Is(err, shared.ErrCancelled) {
			logger.Warn("cancelled")
			os.Exit(130)
		}
		if services.IsAuthError(err) {
			logger.Error("not signed in to Spotify, run 'stitchr auth login'")
		}
		logger.Fatalf("application error: %v", err)
	}
}
