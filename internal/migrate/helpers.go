package migrate

import (
	"fmt"
	"regexp"
	"strings"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/tenant"
)

var labelPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
var propertyKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidLabel(l string) bool    { return labelPattern.MatchString(l) }
func isValidPropertyKey(k string) bool { return propertyKeyPattern.MatchString(k) }

// sprintfScope splices a tenant.ScopeClause result into a backfill's Find
// template, which carries exactly one %s placeholder for it.
func sprintfScope(find, scope string) string {
	return fmt.Sprintf(find, scope)
}

// buildSetQuery builds `MATCH (n:Label {id: $id}) WHERE <tenant scope>
// SET n.k1 = $f_k1, ... RETURN n` for an arbitrary property set, mirroring
// the identifier-allowlist discipline of repository.go's upsertNode. The
// tenant match goes through tenant.ScopeClause rather than an inline
// {graph_id: $tenant} pattern property, because some of the rows this
// package's own backfills target (M010, M011) are exactly the rows that
// are still missing one of the two tenant property spellings.
func buildSetQuery(label string, set map[string]any) (string, map[string]any) {
	params := make(map[string]any, len(set)+2)
	clauses := make([]string, 0, len(set))
	for k, v := range set {
		if !isValidPropertyKey(k) {
			continue
		}
		params["f_"+k] = v
		clauses = append(clauses, fmt.Sprintf("n.%s = $f_%s", k, k))
	}
	safeLabel := label
	if !isValidLabel(safeLabel) {
		safeLabel = "InvalidLabel"
	}
	query := fmt.Sprintf(`
MATCH (n:%s {id: $id}) WHERE %s
SET %s, n.updatedAt = datetime()
RETURN n`, safeLabel, tenant.ScopeClause("n", "tenant"), strings.Join(clauses, ", "))
	return query, params
}

func migrateErrorUnknownBackfill(name string) error {
	return graphkgerrors.Validation("unknown backfill migration %q", name)
}

// sprintIDPattern matches the e<NNN>_s<NN> Sprint id shape; adhoc sprints
// carry no derivable epic id.
var sprintIDPattern = regexp.MustCompile(`^(e\d{3})_s\d{2}$`)

// deriveEpicIDFromSprint mirrors repository.go's unexported helper of the
// same name: it is duplicated here rather than exported across packages
// because it is a three-line regex, not shared state.
func deriveEpicIDFromSprint(sprintID string) (string, bool) {
	if m := sprintIDPattern.FindStringSubmatch(sprintID); m != nil {
		return m[1], true
	}
	return "", false
}
