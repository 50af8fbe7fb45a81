package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, then initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}

		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		config.ApplyEnv(r.getenv)
		r.config = config
		r.logger.Info("config file created", "path", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return r.writePlain("✓ Rolled back the latest migration\n")
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s\n", r.config.Database.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set provider.url and provider.anon_key in %s (or SUPABASE_URL / SUPABASE_ANON_KEY)\n", configPath)
	return r.writePlain("2. Run 'dronewatch auth login' to sign in\n")
}
