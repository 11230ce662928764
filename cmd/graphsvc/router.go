package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// newRouter binds the resource surfaces of spec.md §6 to the wired
// components. Every handler does nothing but decode, call a component
// method, and encode — the router carries no business logic of its own.
func newRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestMetrics(a))

	r.Get("/healthz", a.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/graph/documents", a.handleUpsertDocument)

		r.Get("/events/stream", a.handleEventsStream)
		r.Post("/events/dlq", a.handleDLQEnqueue)
		r.Get("/events/dlq", a.handleDLQList)
		r.Get("/events/dlq/{id}", a.handleDLQGet)
		r.Post("/events/dlq/{id}/retry", a.handleDLQRetry)

		r.Post("/task/{id}/verify", a.handleTaskVerify)
		r.Post("/task/{id}/override", a.handleTaskOverride)

		r.Post("/migrations/{name}", a.handleRunMigration)
		r.Post("/migrations", a.handleRunAllMigrations)
		r.Delete("/graph/cleanup", a.handleCleanup)
	})

	return r
}

func (a *app) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := a.gw.VerifyConnectivity(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// requestMetrics records graphkg_http_requests_total/duration per request,
// grounded on the same r3e metrics.go RecordHTTPRequest call site this
// package's internal/metrics adapts.
func requestMetrics(a *app) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			a.metrics.RecordRequest(r.Method, route, statusBucket(sw.status), time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func statusBucket(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
