package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/models"
)

func TestErrorCodeCoversEveryKind(t *testing.T) {
	kinds := []graphkgerrors.Kind{
		graphkgerrors.KindValidation, graphkgerrors.KindNotFound,
		graphkgerrors.KindUnauthorized, graphkgerrors.KindForbidden,
		graphkgerrors.KindConflict, graphkgerrors.KindTooEarly,
		graphkgerrors.KindServiceUnavailable, graphkgerrors.KindInternal,
	}
	for _, k := range kinds {
		if code := errorCode(k); code == "" {
			t.Errorf("errorCode(%v) returned empty string", k)
		}
	}
	if errorCode(graphkgerrors.KindForbidden) != "FORBIDDEN" {
		t.Errorf("errorCode(Forbidden) = %q, want FORBIDDEN", errorCode(graphkgerrors.KindForbidden))
	}
}

func TestWriteErrorSurfacesTooEarlyAsHTTP200(t *testing.T) {
	w := httptest.NewRecorder()
	err := graphkgerrors.TooEarly("retry not yet due").WithContext("remainingSeconds", 42)
	writeError(w, err)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestWriteErrorSurfacesForbiddenAs403(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, graphkgerrors.Forbidden("only human users can override verification"))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestStatusBucket(t *testing.T) {
	cases := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 500: "5xx"}
	for status, want := range cases {
		if got := statusBucket(status); got != want {
			t.Errorf("statusBucket(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestPrincipalFromRequestDefaultsToAgentWhenMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	p := principalFromRequest(r)
	if p.Kind != models.PrincipalAgent {
		t.Errorf("Kind = %v, want PrincipalAgent (fail-closed default)", p.Kind)
	}
}

func TestPrincipalFromRequestHonorsUserKind(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Principal-Id", "u1")
	r.Header.Set("X-Principal-Kind", "User")
	p := principalFromRequest(r)
	if p.Kind != models.PrincipalUser || p.ID != "u1" {
		t.Errorf("principalFromRequest = %+v, want User/u1", p)
	}
}

func TestSplitCSV(t *testing.T) {
	if got := splitCSV(""); got != nil {
		t.Errorf("splitCSV(\"\") = %v, want nil", got)
	}
	got := splitCSV("a, b ,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitCSV = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitCSV[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
