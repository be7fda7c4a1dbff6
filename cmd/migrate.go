package cmd

import (
	"fmt"
	"log/slog"

	"github.com/psds-microservice/support-desk/internal/config"
	"github.com/psds-microservice/support-desk/internal/database"
	"github.com/psds-microservice/support-desk/internal/logging"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logs := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer logs.Close()
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Info("migrate up: ok")
	return nil
}
