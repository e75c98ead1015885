package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/database"
)

// migrateCmd applies the schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Creates or upgrades the screener schema.

Example:
  go run ./cmd/sgloader migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := db.Migrate(ctx)
	for _, name := range applied {
		fmt.Printf("  applied %s\n", name)
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if len(applied) == 0 {
		PrintSuccess("Schema is up to date")
		return nil
	}
	PrintSuccess(fmt.Sprintf("Applied %d migration(s)", len(applied)))
	return nil
}
