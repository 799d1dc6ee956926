package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/database"
	"github.com/naduri/naduri-backend/internal/lock"
	"github.com/naduri/naduri-backend/internal/logging"
	"github.com/naduri/naduri-backend/internal/repository/sqlrepo"
	"github.com/naduri/naduri-backend/internal/services"
)

var configPath string

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "naduri-tools",
		Short:        "Administrative commands for the Naduri backend",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: search ., ./config, ~/.naduri)")

	root.AddCommand(newMigrateCmd(), newExportCmd())
	return root
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log), nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.RunMigrations(cfg.Database); err != nil {
				return err
			}
			logger.WithField("driver", cfg.Database.Driver).Info("Migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.RollbackMigration(cfg.Database); err != nil {
				return err
			}
			logger.WithField("driver", cfg.Database.Driver).Info("Rolled back one migration")
			return nil
		},
	})

	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a session transcript",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "txt <session_id>",
		Short: "Print the plain-text transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExporter(func(exp *services.Exporter) error {
				text, err := exp.ExportText(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "json <session_id>",
		Short: "Print the session and its turns as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExporter(func(exp *services.Exporter) error {
				out, err := exp.ExportJSON(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	})

	return cmd
}

// withExporter opens the configured database for read-only export commands
func withExporter(fn func(*services.Exporter) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions := services.NewSessionService(sqlrepo.NewSessionRepository(db.DB), logger)
	ledger := services.NewLedger(sqlrepo.NewTurnRepository(db.DB), lock.NewKeyedMutex(), nil, logger)
	return fn(services.NewExporter(sessions, ledger))
}
