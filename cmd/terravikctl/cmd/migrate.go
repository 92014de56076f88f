package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/KairamCabral/terravik-sub002/internal/config"
	"github.com/KairamCabral/terravik-sub002/internal/logging"
	pgstore "github.com/KairamCabral/terravik-sub002/internal/store/postgres"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

func newMigrateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema (uses DATABASE_URL)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *pgstore.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return renderVersion(cmd, root, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *pgstore.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				return renderVersion(cmd, root, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *pgstore.Migrator) error {
				return renderVersion(cmd, root, m)
			})
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*pgstore.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errNoDatabase
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	migrator, err := pgstore.NewMigrator(pg.DB(), logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	return fn(migrator)
}

func renderVersion(cmd *cobra.Command, root *rootOptions, m *pgstore.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	return root.render(cmd.OutOrStdout(), map[string]any{
		"version": version,
		"dirty":   dirty,
	})
}
