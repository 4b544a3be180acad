package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opsimport/internal/config"
	"github.com/JonMunkholm/opsimport/internal/core"
	"github.com/JonMunkholm/opsimport/internal/database"
)

func newRollbackCmd() *cobra.Command {
	var companyID, period string

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Delete the committed batch of a company and period",
		Long: `Delete the committed batch of a company and period, with all of its sales
and service order lines, so the period can be imported again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.Open(ctx, database.PoolConfig{URL: cfg.Database.URL, MaxConns: 1})
			if err != nil {
				return err
			}
			defer pool.Close()

			service := core.NewService(database.NewStore(pool), core.Options{})
			res, err := service.Rollback(ctx, companyID, period)
			if err != nil {
				return fmt.Errorf("%w (%s)", err, core.MapError(err).Code)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed batch %s: %d sales lines, %d service order lines\n",
				res.BatchID, res.SalesDeleted, res.ServiceOrdersDeleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&companyID, "company-id", "", "Company identifier (required)")
	cmd.Flags().StringVar(&period, "period", "", "Accounting month, YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("company-id")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}
