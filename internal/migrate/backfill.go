// Package migrate implements the Migration / Cleanup Runner (C9,
// spec.md §4.9): idempotent property backfills and malformed-title
// cleanup, both dry-run-first, with duplicate cleanup handed off to C4
// (internal/dedup).
//
// Grounded on the teacher's cmd/crisk-sync/main.go --dry-run flag
// convention (report actions without executing, same flag name and
// semantics) and on internal/graph/neo4j_backend.go's label-dispatched
// write template, generalized here to dispatch over a fixed registry of
// named backfills instead of a fixed set of GitHub-domain labels.
package migrate

import (
	"context"

	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/llm"
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/tenant"
)

// BackfillResult reports what a backfill did or would do, per spec.md
// §4.9's {migrated, skipped, errors} contract.
type BackfillResult struct {
	Name     string
	Migrated int
	Skipped  int
	Errors   int
}

// backfill describes one named, idempotent property backfill: find rows
// matching Find (missing the target property or needing correction),
// compute Set for each row, and apply it unless dry-run.
type backfill struct {
	Name  string
	Label string
	// Find returns the Cypher MATCH+WHERE selecting candidate rows, bound
	// only to $tenant, and must RETURN at least `n`.
	Find string
	// Apply computes the SET parameters for one candidate row (the `n`
	// properties map) and reports whether this row actually needs a
	// change (false means the row should count as Skipped, not Migrated).
	Apply func(props map[string]any) (set map[string]any, needed bool)
}

// registry lists the backfill migrations named in spec.md §4.9.
var registry = []backfill{
	{
		Name:  "M009_roadmap_props",
		Label: "Epic",
		Find:  `MATCH (n:Epic) WHERE %s AND (n.roadmap_status IS NULL OR n.roadmap_lane IS NULL) RETURN n`,
		Apply: func(props map[string]any) (map[string]any, bool) {
			set := map[string]any{}
			needed := false
			if graph.NormalizeString(props["roadmap_status"]) == "" {
				set["roadmap_status"] = "planned"
				needed = true
			}
			if graph.NormalizeString(props["roadmap_lane"]) == "" {
				set["roadmap_lane"] = "later"
				needed = true
			}
			return set, needed
		},
	},
	{
		Name:  "M010_epic_graph_id",
		Label: "Epic",
		Find:  `MATCH (n:Epic) WHERE %s AND (n.graph_id IS NULL OR n.graphId IS NULL) RETURN n`,
		Apply: func(props map[string]any) (map[string]any, bool) {
			return convergeTenantProps(props)
		},
	},
	{
		Name:  "M011_sprint_task_epic_graph_id",
		Label: "Sprint",
		Find:  `MATCH (n:Sprint) WHERE %s AND (n.epic_id IS NULL OR n.graph_id IS NULL OR n.graphId IS NULL) RETURN n`,
		Apply: func(props map[string]any) (map[string]any, bool) {
			set, needed := convergeTenantProps(props)
			if graph.NormalizeString(props["epic_id"]) == "" {
				if epicID, ok := deriveEpicIDFromSprint(graph.NormalizeString(props["id"])); ok {
					set["epic_id"] = epicID
					needed = true
				}
			}
			return set, needed
		},
	},
	{
		Name:  "M013_default_status_active",
		Label: "Epic",
		Find:  `MATCH (n:Epic) WHERE %s AND (n.status IS NULL OR n.status = '') RETURN n`,
		Apply: func(props map[string]any) (map[string]any, bool) {
			return map[string]any{"status": "active"}, true
		},
	},
	{
		Name:  "M014_goal_to_content",
		Label: "Sprint",
		Find:  `MATCH (n:Sprint) WHERE %s AND n.goal IS NOT NULL AND n.goal <> '' RETURN n`,
		Apply: func(props map[string]any) (map[string]any, bool) {
			if graph.NormalizeString(props["content"]) != "" {
				return nil, false
			}
			return map[string]any{"content": graph.NormalizeString(props["goal"])}, true
		},
	},
}

// convergeTenantProps fills in whichever of graph_id/graphId is missing
// from the other, per tenant.WriteProperties' dual-spelling contract —
// the backfill never invents a tenant value out of thin air, only copies
// across the spelling that is already present.
func convergeTenantProps(props map[string]any) (map[string]any, bool) {
	gid := graph.NormalizeString(props["graph_id"])
	gId := graph.NormalizeString(props["graphId"])
	set := map[string]any{}
	switch {
	case gid == "" && gId != "":
		set["graph_id"] = gId
		return set, true
	case gId == "" && gid != "":
		set["graphId"] = gid
		return set, true
	default:
		return set, false
	}
}

// Names lists the registered backfill migration names, in the fixed order
// RunAll applies them.
func Names() []string {
	names := make([]string, len(registry))
	for i, b := range registry {
		names[i] = b.Name
	}
	return names
}

// Runner is the C9 Migration/Cleanup Runner.
type Runner struct {
	gw          *graph.Gateway
	llmFallback *llm.Client
}

func New(gw *graph.Gateway) *Runner {
	return &Runner{gw: gw}
}

// NewWithTitleFallback wires an LLM client in as the malformed-title
// fallback tier (spec.md §4.9 step 3) for when the run regex matches
// neither a quoted substring nor a trailing comment. A disabled client
// (no API key configured) degrades to the same behavior as New.
func NewWithTitleFallback(gw *graph.Gateway, llmClient *llm.Client) *Runner {
	return &Runner{gw: gw, llmFallback: llmClient}
}

// RunBackfill applies (or, if dryRun, only reports) one named backfill
// against a tenant's nodes. Idempotent: a row with nothing left to fix is
// counted as Skipped, never re-touched.
func (r *Runner) RunBackfill(ctx context.Context, tenantID, name string, dryRun bool) (BackfillResult, error) {
	var b *backfill
	for i := range registry {
		if registry[i].Name == name {
			b = &registry[i]
			break
		}
	}
	if b == nil {
		return BackfillResult{}, migrateErrorUnknownBackfill(name)
	}

	result := BackfillResult{Name: name}
	scope := tenant.ScopeClause("n", "tenant")
	query := sprintfScope(b.Find, scope)

	rows, err := r.gw.Execute(ctx, query, map[string]any{"tenant": tenantID})
	if err != nil {
		return result, err
	}

	for _, row := range rows {
		props := graph.NodeProperties(row["n"])
		if props == nil {
			result.Errors++
			continue
		}
		set, needed := b.Apply(props)
		if !needed {
			result.Skipped++
			continue
		}
		if dryRun {
			result.Migrated++
			continue
		}
		id := graph.NormalizeString(props["id"])
		if err := r.applySet(ctx, b.Label, tenantID, id, set); err != nil {
			logging.Warn("backfill apply failed", "migration", name, "id", id, "error", err)
			result.Errors++
			continue
		}
		result.Migrated++
	}
	return result, nil
}

// RunAllBackfills applies every registered backfill, in registration
// order, and returns one result per migration.
func (r *Runner) RunAllBackfills(ctx context.Context, tenantID string, dryRun bool) ([]BackfillResult, error) {
	results := make([]BackfillResult, 0, len(registry))
	for _, b := range registry {
		res, err := r.RunBackfill(ctx, tenantID, b.Name, dryRun)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) applySet(ctx context.Context, label, tenantID, id string, set map[string]any) error {
	if len(set) == 0 {
		return nil
	}
	query, params := buildSetQuery(label, set)
	params["id"] = id
	params["tenant"] = tenantID
	_, err := r.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		return graph.RunAndCollect(ctx, tx, query, params)
	})
	return err
}
