// Package tenant implements the dual-property tenant scoping clause every
// repository and synthesizer query must include (spec.md §4.2, "Tenant
// Scope"): a node is in scope for tenant T when n.graph_id = T OR
// n.graphId = T. The snake_case form is canonical going forward (§4.9
// migration); the camelCase form is read-only-forever because archived
// data retains whatever spelling was current when it was written.
//
// Grounded on the teacher's CypherBuilder (internal/graph/cypher_builder.go):
// the identifier-allowlist discipline that prevents Cypher injection in
// MERGE clause construction is reused here for building WHERE clauses.
package tenant

import "fmt"

// ScopeClause returns a Cypher boolean expression scoping alias (e.g. "n")
// to tenant, using the parameter name supplied by the caller, and does not
// itself bind the parameter — callers add tenant to their params map under
// that name. Kept as a pure string builder (no driver dependency) so C3,
// C4, C5, C6, C7 can each embed it in larger queries.
func ScopeClause(alias, paramName string) string {
	return fmt.Sprintf("(%s.graph_id = $%s OR %s.graphId = $%s)", alias, paramName, alias, paramName)
}

// WriteProperties returns the property assignments a write must apply to
// keep both spellings in lockstep (spec.md §4.2, "For writes ..."),
// suitable for binding as a map parameter: SET n += $props.
func WriteProperties(tenantID string) map[string]any {
	return map[string]any{
		"graph_id": tenantID,
		"graphId":  tenantID,
	}
}

// WriteClause returns the two SET assignments as a Cypher fragment
// (e.g. "n.graph_id = $tenant, n.graphId = $tenant") for call sites that
// build their SET list manually instead of using `SET n += $props`.
func WriteClause(alias, paramName string) string {
	return fmt.Sprintf("%s.graph_id = $%s, %s.graphId = $%s", alias, paramName, alias, paramName)
}

// MatchesEither reports whether a node's two tenant-property values
// (as read back from the store, where either may be absent/nil) identify
// it as belonging to tenantID, for in-process filtering where a query
// cannot embed the scope clause directly. No query path in the service
// calls it; C5 embeds ScopeClause in its vector-index query instead.
func MatchesEither(graphID, graphIDCamel any, tenantID string) bool {
	if s, ok := graphID.(string); ok && s == tenantID {
		return true
	}
	if s, ok := graphIDCamel.(string); ok && s == tenantID {
		return true
	}
	return false
}

// ArchiveNamespace derives the sibling tenant namespace duplicate-merge
// losers are archived into (spec.md §3, "Archival indelibility"):
// "<graphId>_archive_duplicates_<YYYYMMDD>".
func ArchiveNamespace(tenantID, yyyymmdd string) string {
	return fmt.Sprintf("%s_archive_duplicates_%s", tenantID, yyyymmdd)
}
