// Package dedup implements the Duplicate Reconciler (C4, spec.md §4.4):
// canonical-identity duplicate detection, deterministic survivor selection,
// relationship-preserving merge, and archival of losers into a sibling
// tenant namespace. Invoked by the migration runner (C9) and wired into
// cmd/graphsvc; the repository (C3) does not call it on write.
//
// Grounded on the teacher's internal/graph/neo4j_backend.go getUniqueKey
// idiom for canonical-identity derivation, and on the scored-candidate/
// deterministic-ranking shape of internal/graph/linking_quality_score.go
// (component scores combined into one ordering) — generalized here from a
// repo-linking-quality score into a tuple-ranked survivor selection.
package dedup

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/tenant"
)

// contentBearingFields are always preferentially copied from a loser when
// the survivor has no value (spec.md §4.4 step 1): they typically arrive
// via the document-upload path while structural fields come from
// task-sync, so the survivor (usually the task-sync copy) rarely has them.
var contentBearingFields = []string{"content", "summary", "embedding", "embedding_model"}

var sprintCanonicalPattern = regexp.MustCompile(`^e\d+_s\d+$`)
var epicCanonicalPattern = regexp.MustCompile(`^e\d+$`)
var epicPrefixPattern = regexp.MustCompile(`^epic-(\d+)$`)

// CanonicalSprintID derives the canonical identity used to detect Sprint
// duplicates (spec.md §4.4).
func CanonicalSprintID(id, sprintID string) string {
	lowerID := strings.ToLower(id)
	if sprintCanonicalPattern.MatchString(lowerID) {
		return lowerID
	}
	if sprintID != "" {
		return strings.ToLower(sprintID)
	}
	return lowerID
}

// CanonicalEpicID derives the canonical identity used to detect Epic
// duplicates (spec.md §4.4).
func CanonicalEpicID(epicID, id string) string {
	lowerEpicID := strings.ToLower(epicID)
	if epicCanonicalPattern.MatchString(lowerEpicID) {
		return lowerEpicID
	}
	lowerID := strings.ToLower(id)
	if m := epicPrefixPattern.FindStringSubmatch(lowerID); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return fmt.Sprintf("e%03d", n)
		}
	}
	return lowerID
}

// Candidate is a node considered for a duplicate group, carrying the fields
// needed for survivor ranking and for the merge itself.
type Candidate struct {
	ElementID         string
	ID                string
	Title             string
	UpdatedAt         time.Time
	CreatedAt         time.Time
	RelationshipCount int
	Properties        map[string]any
}

func (c Candidate) latestTimestamp() time.Time {
	if c.UpdatedAt.After(c.CreatedAt) {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

func (c Candidate) nonNullPropertyCount() int {
	n := 0
	for _, v := range c.Properties {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		n++
	}
	return n
}

// Group is a set of candidates sharing a canonical identity within a tenant.
type Group struct {
	Label     string
	Canonical string
	Nodes     []Candidate
}

// Rank orders Nodes survivor-first per spec.md §4.4 "Survivor selection":
// descending (latest timestamp, has-non-empty-title, relationship count,
// non-null property count), ties broken by ascending element identifier so
// the outcome is deterministic across repeated dry-runs.
func (g *Group) Rank() {
	sort.SliceStable(g.Nodes, func(i, j int) bool {
		a, b := g.Nodes[i], g.Nodes[j]

		at, bt := a.latestTimestamp(), b.latestTimestamp()
		if !at.Equal(bt) {
			return at.After(bt)
		}

		aTitle, bTitle := a.Title != "", b.Title != ""
		if aTitle != bTitle {
			return aTitle
		}

		if a.RelationshipCount != b.RelationshipCount {
			return a.RelationshipCount > b.RelationshipCount
		}

		aProps, bProps := a.nonNullPropertyCount(), b.nonNullPropertyCount()
		if aProps != bProps {
			return aProps > bProps
		}

		return a.ElementID < b.ElementID
	})
}

// Survivor returns the first-ranked node; callers must call Rank first.
func (g *Group) Survivor() Candidate { return g.Nodes[0] }

// Losers returns every node after the survivor; callers must call Rank first.
func (g *Group) Losers() []Candidate { return g.Nodes[1:] }

// Reconciler finds and merges duplicate groups.
type Reconciler struct {
	gw *graph.Gateway
}

// New constructs a Reconciler bound to a Gateway.
func New(gw *graph.Gateway) *Reconciler {
	return &Reconciler{gw: gw}
}

// FindDuplicates scans label within tenant, groups nodes by canonical
// identity, and returns only groups with more than one member.
func (r *Reconciler) FindDuplicates(ctx context.Context, tenantID, label string) ([]*Group, error) {
	if label != "Sprint" && label != "Epic" {
		return nil, graphkgerrors.Validation("duplicate detection is only defined for Sprint and Epic, got %q", label)
	}

	query := fmt.Sprintf(`
MATCH (n:%s)
WHERE %s
OPTIONAL MATCH (n)-[r]-()
RETURN elementId(n) AS elementId, n.id AS id, n.title AS title,
       n.sprint_id AS sprintId, n.epic_id AS epicId,
       n.updatedAt AS updatedAt, n.createdAt AS createdAt,
       properties(n) AS props, count(r) AS relCount
`, label, tenant.ScopeClause("n", "tenant"))

	rows, err := r.gw.Execute(ctx, query, map[string]any{"tenant": tenantID})
	if err != nil {
		return nil, err
	}

	byCanonical := make(map[string]*Group)
	for _, row := range rows {
		id := graph.NormalizeString(row["id"])
		props, _ := row["props"].(map[string]any)

		var canonical string
		if label == "Sprint" {
			canonical = CanonicalSprintID(id, graph.NormalizeString(row["sprintId"]))
		} else {
			canonical = CanonicalEpicID(graph.NormalizeString(row["epicId"]), id)
		}

		group, ok := byCanonical[canonical]
		if !ok {
			group = &Group{Label: label, Canonical: canonical}
			byCanonical[canonical] = group
		}
		group.Nodes = append(group.Nodes, Candidate{
			ElementID:         graph.NormalizeString(row["elementId"]),
			ID:                id,
			Title:             graph.NormalizeString(row["title"]),
			UpdatedAt:          parseTimeOrZero(row["updatedAt"]),
			CreatedAt:          parseTimeOrZero(row["createdAt"]),
			RelationshipCount: int(graph.NormalizeValue(row["relCount"])),
			Properties:        props,
		})
	}

	var groups []*Group
	for _, g := range byCanonical {
		if len(g.Nodes) > 1 {
			g.Rank()
			groups = append(groups, g)
		}
	}
	return groups, nil
}

func parseTimeOrZero(v any) time.Time {
	s := graph.NormalizeString(v)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MergeReport summarizes the outcome of merging one group.
type MergeReport struct {
	Label          string
	Canonical      string
	SurvivorID     string
	ArchivedLosers []string
	PropertiesCopied int
	EdgesMigrated    int
	DryRun         bool
	Err            error
}

// Merge executes the merge protocol of spec.md §4.4 for a single group,
// atomically (one write transaction) per spec.md §3 "Relationship
// preservation" and §4.4 "Failure semantics": a step failure aborts the
// whole group and leaves every loser in place. dryRun computes and returns
// the report without writing anything.
func (r *Reconciler) Merge(ctx context.Context, tenantID string, group *Group, dryRun bool, archiveDate string) MergeReport {
	survivor := group.Survivor()
	report := MergeReport{Label: group.Label, Canonical: group.Canonical, SurvivorID: survivor.ID, DryRun: dryRun}

	for _, loser := range group.Losers() {
		copied := propertiesToCopy(survivor, loser)
		report.PropertiesCopied += len(copied)
		report.EdgesMigrated += loser.RelationshipCount
		report.ArchivedLosers = append(report.ArchivedLosers, loser.ID)
	}

	if dryRun {
		return report
	}

	_, err := r.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		for _, loser := range group.Losers() {
			if err := r.mergeOne(ctx, tx, tenantID, group.Label, survivor, loser, archiveDate); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		logging.Error("duplicate merge aborted for group, every loser left in place", "label", group.Label, "canonical", group.Canonical, "error", err)
		report.Err = err
	}

	return report
}

func propertiesToCopy(survivor, loser Candidate) map[string]any {
	copied := make(map[string]any)
	for _, field := range contentBearingFields {
		if isEmpty(survivor.Properties[field]) && !isEmpty(loser.Properties[field]) {
			copied[field] = loser.Properties[field]
		}
	}
	for key, value := range loser.Properties {
		if isEmpty(value) {
			continue
		}
		if _, already := copied[key]; already {
			continue
		}
		if isEmpty(survivor.Properties[key]) {
			copied[key] = value
		}
	}
	return copied
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// mergeOne runs steps 1-4 of spec.md §4.4 for one loser inside the group's
// write transaction tx: copy missing properties onto the survivor, recreate every
// incoming/outgoing edge of loser on survivor as a fresh edge (never a
// rebound one, so any pre-existing identical edge on the survivor is
// preserved rather than coalesced), then archive the loser.
func (r *Reconciler) mergeOne(ctx context.Context, tx graph.Runner, tenantID, label string, survivor, loser Candidate, archiveDate string) error {
	copied := propertiesToCopy(survivor, loser)
	archiveNamespace := tenant.ArchiveNamespace(tenantID, archiveDate)

	params := map[string]any{
		"survivorElementId": survivor.ElementID,
		"loserElementId":    loser.ElementID,
		"archiveGraphID":    archiveNamespace,
		"originalGraphID":   tenantID,
		"keptElementId":     survivor.ElementID,
	}
	setClauses := make([]string, 0, len(copied))
	for key, value := range copied {
		if !isValidPropertyKey(key) {
			return graphkgerrors.Internal(nil, "invalid property key %q during merge", key)
		}
		params["prop_"+key] = value
		setClauses = append(setClauses, fmt.Sprintf("survivor.%s = $prop_%s", key, key))
	}
	propertyCopyClause := ""
	if len(setClauses) > 0 {
		propertyCopyClause = "SET " + strings.Join(setClauses, ", ")
	}

	query := fmt.Sprintf(`
MATCH (survivor:%[1]s) WHERE elementId(survivor) = $survivorElementId
MATCH (loser:%[1]s) WHERE elementId(loser) = $loserElementId
%[2]s
WITH survivor, loser
OPTIONAL MATCH (x)-[rIn]->(loser)
WITH survivor, loser, collect({other: x, type: type(rIn), props: properties(rIn)}) AS incoming
OPTIONAL MATCH (loser)-[rOut]->(y)
WITH survivor, loser, incoming, collect({other: y, type: type(rOut), props: properties(rOut)}) AS outgoing
FOREACH (edge IN [e IN incoming WHERE e.other IS NOT NULL] |
  CREATE (edge.other)-[nr:MIGRATED_REL]->(survivor)
  SET nr += edge.props, nr.original_type = edge.type
)
FOREACH (edge IN [e IN outgoing WHERE e.other IS NOT NULL] |
  CREATE (survivor)-[nr:MIGRATED_REL]->(edge.other)
  SET nr += edge.props, nr.original_type = edge.type
)
WITH survivor, loser
OPTIONAL MATCH (loser)-[r]-()
DELETE r
WITH survivor, loser
SET loser.graph_id = $archiveGraphID,
    loser.graphId = $archiveGraphID,
    loser.archived_from = $originalGraphID,
    loser.archived_at = datetime(),
    loser.archived_reason = 'duplicate_cleanup',
    loser.kept_element_id = $keptElementId
RETURN survivor, loser
`, label, propertyCopyClause)

	_, err := graph.RunAndCollect(ctx, tx, query, params)
	return err
}

var propertyKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPropertyKey(key string) bool {
	return propertyKeyPattern.MatchString(key)
}
