package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/migrate"
)

func parseDryRun(r *http.Request) bool {
	return r.URL.Query().Get("dryRun") == "true"
}

// handleRunMigration binds POST /api/v1/migrations/:name (spec.md §4.9/§6).
func (a *app) handleRunMigration(w http.ResponseWriter, r *http.Request) {
	result, err := a.migrations.RunBackfill(r.Context(), tenantID(r), chi.URLParam(r, "name"), parseDryRun(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRunAllMigrations binds POST /api/v1/migrations (no name segment):
// runs every registered backfill for the tenant.
func (a *app) handleRunAllMigrations(w http.ResponseWriter, r *http.Request) {
	results, err := a.migrations.RunAllBackfills(r.Context(), tenantID(r), parseDryRun(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleCleanup binds DELETE /api/v1/graph/cleanup?action=...&dryRun=&confirm=
// (spec.md §4.9/§6). "action" selects whether duplicate cleanup is also
// included; apply mode requires confirm=CLEANUP_CONFIRMED.
func (a *app) handleCleanup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("confirm") != "" && q.Get("confirm") != "CLEANUP_CONFIRMED" {
		writeError(w, graphkgerrors.Validation("confirm must be exactly CLEANUP_CONFIRMED"))
		return
	}

	report, err := a.migrations.RunCleanup(r.Context(), tenantID(r), migrate.CleanupInput{
		DryRun:            parseDryRun(r),
		IncludeDuplicates: q.Get("action") == "dedupe" || q.Get("action") == "all",
		ConfirmationToken: q.Get("confirm"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
