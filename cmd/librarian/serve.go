package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"librarian/internal/auth"
	"librarian/internal/config"
	"librarian/internal/server"
	"librarian/internal/storage"
	"librarian/internal/telemetry"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(cfg.Log)

			if cfg.Auth.AdminPasswordHash != "" {
				if err := auth.CheckHash(cfg.Auth.AdminPasswordHash); err != nil {
					return fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err)
				}
			}

			shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, version)
			if err != nil {
				return fmt.Errorf("telemetry: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), cfg.Global.ShutdownTimeout)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					logger.Warn("telemetry shutdown failed", "error", err)
				}
			}()

			db, err := openDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(ctx, db); err != nil {
				return err
			}
			if cfg.Auth.AdminPasswordHash == "" {
				logger.Warn("ADMIN_PASSWORD_HASH is not set; write endpoints are unreachable")
			}

			return server.New(cfg, db, logger).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.HTTP.Addr, "addr", cfg.HTTP.Addr, "listen address")
	return cmd
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

// openDB accepts a plain file path for the sqlite3 driver.
func openDB(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	dsn := cfg.URL
	if cfg.Driver == storage.DriverSQLite && !strings.HasPrefix(dsn, "file:") {
		var err error
		if dsn, err = storage.SQLiteDSN(dsn); err != nil {
			return nil, err
		}
	}
	return storage.Open(ctx, cfg.Driver, dsn)
}

func newLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
