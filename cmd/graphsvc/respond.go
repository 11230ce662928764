package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("encode response", "error", err)
	}
}

// errorCode turns a Kind into the SCREAMING_SNAKE code the response body
// carries (spec.md §4.10 scenario S5's {error:{code:"FORBIDDEN", ...}}).
func errorCode(k graphkgerrors.Kind) string {
	switch k {
	case graphkgerrors.KindValidation:
		return "VALIDATION_ERROR"
	case graphkgerrors.KindNotFound:
		return "NOT_FOUND"
	case graphkgerrors.KindUnauthorized:
		return "UNAUTHORIZED"
	case graphkgerrors.KindForbidden:
		return "FORBIDDEN"
	case graphkgerrors.KindConflict:
		return "CONFLICT"
	case graphkgerrors.KindTooEarly:
		return "TOO_EARLY"
	case graphkgerrors.KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps any error to the spec.md §7 HTTP status for its Kind,
// except TooEarly, which spec.md deliberately surfaces as 200 with
// success:false plus the remainingSeconds hint rather than a transport
// failure.
func writeError(w http.ResponseWriter, err error) {
	kind := graphkgerrors.GetKind(err)
	status := kind.HTTPStatus()

	body := errorBody{}
	body.Error.Code = errorCode(kind)
	body.Error.Message = err.Error()

	if kind == graphkgerrors.KindTooEarly {
		resp := map[string]any{"success": false, "error": body.Error}
		if ge, ok := graphkgerrors.As(err); ok {
			if remaining, ok := ge.Context["remainingSeconds"]; ok {
				resp["remainingSeconds"] = remaining
			}
		}
		writeJSON(w, status, resp)
		return
	}

	if status >= 500 {
		logging.Error("request failed", "error", err)
	}
	writeJSON(w, status, body)
}

func tenantID(r *http.Request) string {
	return r.URL.Query().Get("graphId")
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// principalFromRequest is a stand-in for the excluded auth collaborator
// (spec.md §6: "validation and user-resolution are collaborator
// concerns"). It trusts two headers a real deployment would populate from
// the verified bearer token: X-Principal-Id and X-Principal-Kind.
func principalFromRequest(r *http.Request) models.Principal {
	kind := models.PrincipalKind(r.Header.Get("X-Principal-Kind"))
	if kind != models.PrincipalUser && kind != models.PrincipalAgent {
		kind = models.PrincipalAgent
	}
	return models.Principal{
		ID:          r.Header.Get("X-Principal-Id"),
		Kind:        kind,
		DisplayName: r.Header.Get("X-Principal-Name"),
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
