package cmd

import (
	"fmt"

	"github.com/MrEthical07/linkauth/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		group, err := storage.Migrate(ctx, db)
		if err != nil {
			return err
		}
		if group.IsZero() {
			fmt.Fprintln(cmd.OutOrStdout(), "no new migrations")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied migration group %d\n", group.ID)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, pending, err := storage.Status(ctx, db)
		if err != nil {
			return err
		}
		for _, m := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied  %s\n", m.Name)
		}
		for _, m := range pending {
			fmt.Fprintf(cmd.OutOrStdout(), "pending  %s\n", m.Name)
		}
		return nil
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the last migration group",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		group, err := storage.Rollback(ctx, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", group)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd, migrateRollbackCmd)
}
