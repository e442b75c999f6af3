package main

import (
	"errors"
	"fmt"

	"github.com/callmask/golang_services/internal/platform/database"
	poolapp "github.com/callmask/golang_services/internal/proxy_pool_service/app"
	poolpg "github.com/callmask/golang_services/internal/proxy_pool_service/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var errInvalidSeedSize = errors.New("--size must be greater than zero")

// newPoolService builds a pool service for maintenance commands. They never
// seal or open mappings, so no vault is wired.
func (c *cli) newPoolService(db *pgxpool.Pool) *poolapp.PoolService {
	return poolapp.NewPoolService(
		poolpg.NewPgProxyNumberRepository(db, c.logger),
		nil,
		poolapp.RandomNumberSource{Prefix: c.cfg.ProxyNumberPrefix, Digits: c.cfg.ProxyNumberSuffixDigits},
		poolapp.PoolConfig{
			AssignmentTTL:        c.cfg.AssignmentTTL(),
			MaxSynthesisAttempts: c.cfg.SynthesisMaxAttempts,
		},
		c.logger,
	)
}

func newSeedPoolCmd(c *cli) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "seed-pool",
		Short: "Insert new available proxy numbers into the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("size") {
				size = c.cfg.PoolSeedSize
			}
			if size <= 0 {
				return errInvalidSeedSize
			}
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.EnsureSchema(ctx, db); err != nil {
				return err
			}
			inserted, err := c.newPoolService(db).Seed(ctx, size)
			if err != nil {
				return fmt.Errorf("seeding stopped after %d numbers: %w", inserted, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d of %d requested proxy numbers.\n", inserted, size)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 200, "number of proxy numbers to add (defaults to POOL_SEED_SIZE)")
	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print pool occupancy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := c.newPoolService(db).Stats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total:     %d\n", stats.Total)
			fmt.Fprintf(out, "available: %d\n", stats.Available)
			fmt.Fprintf(out, "usage:     %.1f%%\n", stats.UsagePercent())
			return nil
		},
	}
}
