package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long:  "Creates the domains, keywords, phrases and ai_query_results tables for the configured driver.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer st.close()

		if err := st.migrate(ctx); err != nil {
			return fmt.Errorf("migrate %s: %w", cfg.Database.Driver, err)
		}

		logger.Info("Migrations applied", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
