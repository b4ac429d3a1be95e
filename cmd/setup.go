package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/desertthunder/stitchr/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes config.toml from the template when it is missing, then opens the
// database and applies (or with --rollback, reverts) migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configName()

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := shared.LoadEnv(config); err != nil {
			r.logger.Warn("failed to apply environment overrides", "error", err)
		}
		r.config = config
		r.writePlain("✓ Created %s\n", configPath)
	}

	if r.db == nil {
		r.logger.Info("initializing database", "path", r.config.Database.Path)
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
	}
	r.wire()

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back last migration")
		if err := shared.RollbackMigration(r.db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return r.writePlain("✓ Rolled back the most recent migration\n")
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)

	if !r.config.Credentials.Spotify.Valid() {
		r.writePlainln("Next steps:")
		r.writePlain("1. Register an app at https://developer.spotify.com/dashboard\n")
		r.writePlain("2. Add %s to its redirect URIs\n", r.config.Credentials.Spotify.RedirectURI)
		r.writePlain("3. Set client_id and client_secret in %s\n", configPath)
		r.writePlain("4. Run 'stitchr auth login'\n")
	}
	return nil
}
