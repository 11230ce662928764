package main

import (
	"encoding/json"
	"net/http"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/models"
)

// handleUpsertDocument binds POST /api/v1/graph/documents (spec.md §6),
// the surface that supersedes the deprecated /api/v1/epic/sync endpoint.
func (a *app) handleUpsertDocument(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, graphkgerrors.Validation("invalid request body: %v", err))
		return
	}

	principal := principalFromRequest(r)
	result, err := a.repo.UpsertDocument(r.Context(), doc.GraphID, &doc, principal.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
