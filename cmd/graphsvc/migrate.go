package main

import (
	"fmt"

	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/migrate"
	"github.com/spf13/cobra"
)

var (
	migrateGraphID string
	migrateName    string
	migrateDryRun  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the C9 backfill migrations for one tenant",
	Long: `Runs one named backfill, or every registered backfill when --name
is omitted. A row whose Apply reports no change needed is reported as
Skipped, never re-written, so repeated runs are safe.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateGraphID, "graph-id", "", "tenant graph id (required)")
	migrateCmd.Flags().StringVar(&migrateName, "name", "", "backfill name (default: all of "+fmt.Sprint(migrate.Names())+")")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report actions without executing")
	migrateCmd.MarkFlagRequired("graph-id")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := bgContext()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrateName != "" {
		result, err := a.migrations.RunBackfill(ctx, migrateGraphID, migrateName, migrateDryRun)
		if err != nil {
			return err
		}
		logging.Info("backfill complete", "name", result.Name, "migrated", result.Migrated, "skipped", result.Skipped, "errors", result.Errors)
		return nil
	}

	results, err := a.migrations.RunAllBackfills(ctx, migrateGraphID, migrateDryRun)
	if err != nil {
		return err
	}
	for _, r := range results {
		logging.Info("backfill complete", "name", r.Name, "migrated", r.Migrated, "skipped", r.Skipped, "errors", r.Errors)
	}
	return nil
}
