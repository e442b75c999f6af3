package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/callmask/golang_services/internal/platform/config"
	"github.com/callmask/golang_services/internal/platform/database"
	"github.com/callmask/golang_services/internal/platform/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

const appName = "poolctl"

// cli carries what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type cli struct {
	dsn    string
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   appName,
		Short: "Provisioning tool for the call masking services",
		Long: `poolctl prepares the call masking database: it applies the schema,
seeds the proxy number pool, creates users and generates mapping keys.
Configuration is read the same way the services read it (APP_* variables,
.env and configs/config.defaults.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(appName)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			c.cfg = cfg
			if c.dsn == "" {
				c.dsn = cfg.PostgresDSN
			}
			c.logger = logger.NewWithWriter(os.Stderr, appName, cfg.LogLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.dsn, "dsn", "", "PostgreSQL DSN (defaults to the configured POSTGRES_DSN)")

	root.AddCommand(
		newMigrateCmd(c),
		newSeedPoolCmd(c),
		newAddUserCmd(c),
		newGenKeyCmd(),
		newStatsCmd(c),
	)
	return root
}

func (c *cli) openDB(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := database.NewDBPool(ctx, c.dsn, database.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return pool, nil
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the proxy_pool and users tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.EnsureSchema(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
