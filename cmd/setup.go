package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tbonnin/mediatheque/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file if missing and initializes the active
// user's store with the current schema.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	config := r.resolveConfig(cmd)
	if config.Library.ActiveUser == "" {
		return fmt.Errorf("%w: set library.active_user or pass --user", shared.ErrInvalidConfig)
	}

	return r.migrateActiveStore(config)
}

// DBMigrate applies pending migrations to the active user's store.
func (r *Runner) DBMigrate(ctx context.Context, cmd *cli.Command) error {
	config := r.resolveConfig(cmd)
	if config.Library.ActiveUser == "" {
		return fmt.Errorf("%w: set library.active_user or pass --user", shared.ErrInvalidConfig)
	}
	return r.migrateActiveStore(config)
}

// DBRollback rolls back the most recent migration on the active user's store.
func (r *Runner) DBRollback(ctx context.Context, cmd *cli.Command) error {
	config := r.resolveConfig(cmd)
	if config.Library.ActiveUser == "" {
		return fmt.Errorf("%w: set library.active_user or pass --user", shared.ErrInvalidConfig)
	}

	db, err := shared.NewDatabase(config.ActiveStorePath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	r.logger.Info("rolled back most recent migration", "store", config.ActiveStorePath())
	return nil
}

func (r *Runner) migrateActiveStore(config *shared.Config) error {
	path := config.ActiveStorePath()
	r.logger.Info("initializing store", "path", path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Info("store ready", "path", path)
	return nil
}
