package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/models"
	"github.com/graphkg/service/internal/verify"
)

// handleTaskVerify binds POST /api/v1/task/:id/verify (spec.md §4.10/§6).
func (a *app) handleTaskVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Criteria []models.CriterionOutcome `json:"criteria"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, graphkgerrors.Validation("invalid request body: %v", err))
		return
	}

	result, err := a.verifier.Verify(r.Context(), tenantID(r), verify.VerifyInput{
		TaskID:   chi.URLParam(r, "id"),
		Criteria: body.Criteria,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTaskOverride binds POST /api/v1/task/:id/override (spec.md
// §4.10/§6). The authorization gate (principal must be PrincipalUser) is
// enforced inside Override, before any graph access.
func (a *app) handleTaskOverride(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, graphkgerrors.Validation("invalid request body: %v", err))
		return
	}

	result, err := a.verifier.Override(r.Context(), tenantID(r), verify.OverrideInput{
		TaskID:    chi.URLParam(r, "id"),
		Reason:    body.Reason,
		Principal: principalFromRequest(r),
	})
	if err != nil {
		if result != nil {
			// The override record persisted even though a later step (an
			// edge or the task status mutation) failed — the audit trail is
			// never rolled back (spec.md §7). Report both: the caller sees
			// the failure, but the override itself is not lost.
			writeJSON(w, graphkgerrors.GetKind(err).HTTPStatus(), map[string]any{
				"override": result,
				"warning":  err.Error(),
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
