package main

import (
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/migrate"
	"github.com/spf13/cobra"
)

var (
	cleanupGraphID          string
	cleanupDryRun           bool
	cleanupIncludeDuplicate bool
	cleanupConfirm          string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Scan and retitle malformed Epic/Sprint/Task titles (C9)",
	Long: `Detects titles that are artifacts of a buggy upstream serializer
(JS object dumps, literal undefined/null, HTTP request lines, and similar)
and retitles the affected nodes. Never touches relationships. Apply mode
requires --confirm=CLEANUP_CONFIRMED; dry-run does not.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupGraphID, "graph-id", "", "tenant graph id (required)")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report actions without executing")
	cleanupCmd.Flags().BoolVar(&cleanupIncludeDuplicate, "include-duplicates", false, "also hand off to the C4 duplicate reconciler")
	cleanupCmd.Flags().StringVar(&cleanupConfirm, "confirm", "", "confirmation token required for apply mode")
	cleanupCmd.MarkFlagRequired("graph-id")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := bgContext()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.migrations.RunCleanup(ctx, cleanupGraphID, migrate.CleanupInput{
		DryRun:            cleanupDryRun,
		IncludeDuplicates: cleanupIncludeDuplicate,
		ConfirmationToken: cleanupConfirm,
	})
	if err != nil {
		return err
	}

	logging.Info("cleanup complete",
		"scanned", report.Scanned,
		"malformedFound", report.MalformedFound,
		"retitled", report.Retitled,
		"errors", report.Errors,
		"duplicateGroups", report.DuplicateGroups,
		"duplicatesMerged", report.DuplicatesMerged,
	)
	return nil
}
