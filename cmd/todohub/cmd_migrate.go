package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/birlikkoshan/todohub/internal/app"
	"github.com/birlikkoshan/todohub/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withDB(func(cmd *cobra.Command, conn *db.DB) error {
		if err := conn.Migrate(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, conn)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: withDB(func(cmd *cobra.Command, conn *db.DB) error {
		if err := conn.Rollback(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, conn)
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	RunE:  withDB(printVersion),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func withDB(fn func(cmd *cobra.Command, conn *db.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		conn, err := app.OpenDB(cmd.Context(), cfg.DB)
		if err != nil {
			return err
		}
		defer conn.Close()
		return fn(cmd, conn)
	}
}

func printVersion(cmd *cobra.Command, conn *db.DB) error {
	v, err := conn.Version(cmd.Context())
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema version: %d\n", conn.Dialect(), v)
	return nil
}
