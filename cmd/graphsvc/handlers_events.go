package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/events"
	"github.com/graphkg/service/internal/models"
)

// handleEventsStream binds GET /api/v1/events/stream (spec.md §4.7/§6).
func (a *app) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	timeout := 0 * time.Second
	if raw := q.Get("timeout"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			timeout = time.Duration(secs) * time.Second
		}
	}

	result, err := a.stream.Poll(r.Context(), tenantID(r), events.StreamInput{
		Since:      q.Get("since"),
		Limit:      queryInt(r, "limit", a.cfg.EventsCfg.MaxLimit),
		Timeout:    timeout,
		Categories: splitCSV(q.Get("categories")),
		AgentID:    q.Get("agent_id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	a.metrics.SetEventStreamLag(time.Since(lastEventTimestamp(result.Events)))
	writeJSON(w, http.StatusOK, result)
}

func lastEventTimestamp(evts []models.Event) time.Time {
	if len(evts) == 0 {
		return time.Now()
	}
	return evts[len(evts)-1].Timestamp
}

// handleDLQEnqueue binds POST /api/v1/events/dlq (spec.md §4.8/§6).
func (a *app) handleDLQEnqueue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Event         models.Event `json:"event"`
		FailureReason string       `json:"failureReason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, graphkgerrors.Validation("invalid request body: %v", err))
		return
	}

	if err := a.dlqProc.Enqueue(r.Context(), tenantID(r), &body.Event, body.FailureReason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

// handleDLQList binds GET /api/v1/events/dlq (spec.md §4.8/§6).
func (a *app) handleDLQList(w http.ResponseWriter, r *http.Request) {
	entries, err := a.dlqProc.ListPending(r.Context(), tenantID(r), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleDLQGet binds GET /api/v1/events/dlq/:id.
func (a *app) handleDLQGet(w http.ResponseWriter, r *http.Request) {
	entry, err := a.dlqStore.Get(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleDLQRetry binds POST /api/v1/events/dlq/:id/retry (spec.md §4.8).
// A TooEarly result is surfaced as HTTP 200 with success:false, per
// spec.md §7 — it is not a transport-level failure.
func (a *app) handleDLQRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := a.dlqProc.Retry(r.Context(), tenantID(r), id)
	if err != nil {
		kind := graphkgerrors.GetKind(err)
		if kind == graphkgerrors.KindTooEarly {
			a.metrics.RecordDLQRetry("too_early")
		} else if kind == graphkgerrors.KindInternal {
			a.metrics.RecordDLQRetry("abandoned_or_failed")
		}
		writeError(w, err)
		return
	}
	a.metrics.RecordDLQRetry("resolved")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
