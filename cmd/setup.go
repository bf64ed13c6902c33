package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, opens the database and runs migrations.
//
// With --status it only prints which migrations are applied; --rollback undoes the latest one first.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("status") && !cmd.Bool("rollback") && r.configPath != "" {
		if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else {
				r.writePlain("✓ Created %s\n", r.configPath)
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.writePlain("✓ Rolled back the most recent migration\n")
	}

	migrations, applied, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Migrations")
	for _, m := range migrations {
		mark := "✗"
		if applied[m.Version] {
			mark = "✓"
		}
		r.writePlain("%s %04d %s\n", mark, m.Version, m.Name)
	}

	if !cmd.Bool("status") && !cmd.Bool("rollback") {
		r.writePlain("\n✓ Setup complete for database: %s\n", r.config.Database.Path)
	}
	return nil
}
