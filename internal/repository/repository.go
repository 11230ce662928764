// Package repository implements the typed node/relationship CRUD contract
// of spec.md §4.3, "Node Repository" (C3): MERGE-on-identity upsert with
// authorship monotonicity and dual tenant-property convergence, read,
// filtered list, and relationship create/list.
//
// Grounded on the teacher's write-template idiom in
// internal/graph/neo4j_backend.go (CreateNode/CreateNodes dispatch by
// label, getUniqueKey per-label lookup) and the identifier-allowlist
// discipline of internal/graph/cypher_builder.go, generalized from
// GitHub-domain labels (File, Developer, Commit, PR, Issue) to this
// service's own labels (Epic, Sprint, Task, ...).
package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/models"
	"github.com/graphkg/service/internal/tenant"
)

// identifierPattern mirrors the teacher's isValidIdentifier: only
// alphanumeric + underscore labels/keys are ever spliced into Cypher text,
// everything else travels as a bound parameter.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validIdentifier(s string) bool {
	return s != "" && identifierPattern.MatchString(s)
}

var sprintIDPattern = regexp.MustCompile(`^e\d{3}_s\d{2}$|^adhoc_\d{6}_s\d{2}$`)

// Repository is the Node Repository (C3), the main writer of entity nodes;
// C4, C9 and C10 also write entity nodes through their own gateway calls.
type Repository struct {
	gw *graph.Gateway
}

// New constructs a Repository bound to a Gateway.
func New(gw *graph.Gateway) *Repository {
	return &Repository{gw: gw}
}

// UpsertResult reports what an upsert did, per spec.md §4.3's
// (epicId, createdFlag, nodesCreated, relsCreated) contract generalized to
// any label.
type UpsertResult struct {
	ID            string
	Created       bool
	NodesCreated  int
	RelsCreated   int
}

// upsertNode runs the fixed write template of spec.md §4.3: MERGE on
// (label, id, tenant), authorship set once on create and every time on
// update, both tenant property spellings converged on every write.
func (r *Repository) upsertNode(ctx context.Context, label, id, tenantID, principal string, fields map[string]any) (UpsertResult, error) {
	if !validIdentifier(label) {
		return UpsertResult{}, graphkgerrors.Internal(nil, "invalid node label %q", label)
	}
	if id == "" {
		return UpsertResult{}, graphkgerrors.Validation("id is required")
	}

	params := map[string]any{
		"id":        id,
		"tenant":    tenantID,
		"principal": principal,
	}

	setClauses := make([]string, 0, len(fields))
	for key, value := range fields {
		if !validIdentifier(key) {
			return UpsertResult{}, graphkgerrors.Internal(nil, "invalid property key %q", key)
		}
		params["f_"+key] = value
		setClauses = append(setClauses, fmt.Sprintf("n.%s = $f_%s", key, key))
	}

	query := fmt.Sprintf(`
MERGE (n:%s {id: $id, graph_id: $tenant})
ON CREATE SET n.createdAt = datetime(), n.createdBy = $principal, n.__created = true
ON MATCH  SET n.__created = false
SET %s, n.graph_id = $tenant, n.graphId = $tenant, n.updatedAt = datetime(), n.updatedBy = $principal
WITH n, n.__created AS created
REMOVE n.__created
RETURN n, created
`, label, strings.Join(setClauses, ", "))

	res, err := r.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		return graph.RunAndCollect(ctx, tx, query, params)
	})
	if err != nil {
		return UpsertResult{}, err
	}

	rows := res.([]graph.Row)
	if len(rows) == 0 {
		return UpsertResult{}, graphkgerrors.Internal(nil, "upsert of %s/%s returned no row", label, id)
	}

	created := graph.NormalizeBool(rows[0]["created"])
	result := UpsertResult{ID: id, Created: created, RelsCreated: 0}
	if created {
		result.NodesCreated = 1
	}
	return result, nil
}

// UpsertEpic creates or updates an Epic, idempotent on (tenant, id).
func (r *Repository) UpsertEpic(ctx context.Context, tenantID string, epic *models.Epic, principal string) (UpsertResult, error) {
	if epic.ID == "" {
		return UpsertResult{}, graphkgerrors.Validation("epic id is required")
	}
	if epic.Title == "" {
		return UpsertResult{}, graphkgerrors.Validation("epic title is required")
	}

	return r.upsertNode(ctx, "Epic", epic.ID, tenantID, principal, map[string]any{
		"epic_id":          epic.EpicID,
		"title":            epic.Title,
		"goal":             epic.Goal,
		"vision":           epic.Vision,
		"status":           string(epic.Status),
		"progress":         epic.Progress,
		"successCriteria":  epic.SuccessCriteria,
		"inScope":          epic.InScope,
		"outOfScope":       epic.OutOfScope,
		"roadmap_status":   epic.RoadmapStatus,
		"roadmap_lane":     epic.RoadmapLane,
	})
}

// UpsertSprint creates or updates a Sprint and links it to its Epic via
// BELONGS_TO when the derived epic_id matches an existing Epic (spec.md
// §4.3 "Derived-field policy").
func (r *Repository) UpsertSprint(ctx context.Context, tenantID string, sprint *models.Sprint, principal string) (UpsertResult, error) {
	if !sprintIDPattern.MatchString(sprint.ID) {
		return UpsertResult{}, graphkgerrors.Validation("sprint id %q does not match e<NNN>_s<NN> or adhoc_<YYMMDD>_s<NN>", sprint.ID)
	}

	epicID := sprint.EpicID
	if epicID == "" {
		if derived, ok := deriveEpicIDFromSprint(sprint.ID); ok {
			epicID = derived
		}
	} else if derived, ok := deriveEpicIDFromSprint(sprint.ID); ok && derived != epicID {
		logging.Warn("sprint epic_id disagrees with id-derived value; caller's value wins",
			"sprint_id", sprint.ID, "supplied_epic_id", epicID, "derived_epic_id", derived)
	}

	result, err := r.upsertNode(ctx, "Sprint", sprint.ID, tenantID, principal, map[string]any{
		"epic_id":  epicID,
		"title":    sprint.Title,
		"status":   sprint.Status,
		"progress": sprint.Progress,
	})
	if err != nil {
		return result, err
	}

	if epicID != "" {
		if _, err := r.CreateRelationship(ctx, tenantID, "Sprint", sprint.ID, "Epic", epicID, models.RelBelongsTo, nil); err != nil {
			if graphkgerrors.GetKind(err) != graphkgerrors.KindNotFound {
				return result, err
			}
			logging.Debug("sprint links to an epic that does not exist yet; link skipped", "epic_id", epicID, "sprint_id", sprint.ID)
		} else {
			result.RelsCreated++
		}
	}

	return result, nil
}

// UpsertTask creates or updates a Task and idempotently links it to its
// Sprint via CONTAINS.
func (r *Repository) UpsertTask(ctx context.Context, tenantID string, task *models.Task, principal string) (UpsertResult, error) {
	if task.SprintID == "" {
		return UpsertResult{}, graphkgerrors.Validation("task sprint_id is required")
	}

	epicID := task.EpicID
	if epicID == "" {
		epicID, _ = deriveEpicIDFromSprint(task.SprintID)
	}

	result, err := r.upsertNode(ctx, "Task", task.ID, tenantID, principal, map[string]any{
		"title":            task.Title,
		"sprint_id":        task.SprintID,
		"epic_id":          epicID,
		"status":           string(task.Status),
		"blocked_reason":   task.BlockedReason,
		"owner":            task.Owner,
		"quality_override": task.QualityOverride,
	})
	if err != nil {
		return result, err
	}

	if _, err := r.CreateRelationship(ctx, tenantID, "Sprint", task.SprintID, "Task", task.ID, models.RelContains, nil); err != nil {
		return result, err
	}
	result.RelsCreated++

	return result, nil
}

// UpsertDocument creates or updates an ADR/PRD/Charter/Principle/
// ContextModule node — the shared Document shape of spec.md §4.3. The
// `category` field distinguishes the document kind; it carries no
// relationships of its own (ADR-to-PRD linking is a GraphQL read concern,
// `adrsByPrd`, not a write-time relationship).
func (r *Repository) UpsertDocument(ctx context.Context, tenantID string, doc *models.Document, principal string) (UpsertResult, error) {
	if doc.ID == "" {
		return UpsertResult{}, graphkgerrors.Validation("document id is required")
	}
	if doc.Title == "" {
		return UpsertResult{}, graphkgerrors.Validation("document title is required")
	}

	return r.upsertNode(ctx, "Document", doc.ID, tenantID, principal, map[string]any{
		"title":    doc.Title,
		"content":  doc.Content,
		"summary":  doc.Summary,
		"tags":     doc.Tags,
		"category": doc.Category,
	})
}

// deriveEpicIDFromSprint extracts the "e<NNN>" prefix from a canonical
// sprint id; adhoc sprints have no derivable epic.
func deriveEpicIDFromSprint(sprintID string) (string, bool) {
	if m := regexp.MustCompile(`^(e\d{3})_s\d{2}$`).FindStringSubmatch(sprintID); m != nil {
		return m[1], true
	}
	return "", false
}

// GetNode returns a node's properties by label and id, or (nil, nil) when
// absent — spec.md §4.3: "NotFound only when caller explicitly requires
// existence".
func (r *Repository) GetNode(ctx context.Context, tenantID, label, id string) (graph.Row, error) {
	if !validIdentifier(label) {
		return nil, graphkgerrors.Internal(nil, "invalid node label %q", label)
	}

	query := fmt.Sprintf(`
MATCH (n:%s {id: $id})
WHERE %s
RETURN n
LIMIT 1
`, label, tenant.ScopeClause("n", "tenant"))

	rows, err := r.gw.Execute(ctx, query, map[string]any{"id": id, "tenant": tenantID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// RequireNode is GetNode but returns NotFound instead of (nil, nil).
func (r *Repository) RequireNode(ctx context.Context, tenantID, label, id string) (graph.Row, error) {
	row, err := r.GetNode(ctx, tenantID, label, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, graphkgerrors.NotFound("%s %q not found", label, id)
	}
	return row, nil
}

// ListFilters narrows a ListNodes call. Tags are post-filtered in memory
// (spec.md §4.3) because the store's list-contains-any-of query shape
// varies enough across label schemas that pushing it down is not worth the
// per-label special-casing.
type ListFilters struct {
	Status string
	Tags   []string
	Limit  int
	Offset int
}

func (f ListFilters) clamp() ListFilters {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ListNodes returns a paginated, tenant-scoped list of label, optionally
// filtered by status and tags.
func (r *Repository) ListNodes(ctx context.Context, tenantID, label string, filters ListFilters) ([]graph.Row, error) {
	if !validIdentifier(label) {
		return nil, graphkgerrors.Internal(nil, "invalid node label %q", label)
	}
	filters = filters.clamp()

	params := map[string]any{
		"tenant": tenantID,
		"limit":  filters.Limit,
		"offset": filters.Offset,
	}
	statusClause := ""
	if filters.Status != "" {
		statusClause = "AND n.status = $status"
		params["status"] = filters.Status
	}

	query := fmt.Sprintf(`
MATCH (n:%s)
WHERE %s %s
RETURN n
ORDER BY n.updatedAt DESC
SKIP $offset LIMIT $limit
`, label, tenant.ScopeClause("n", "tenant"), statusClause)

	rows, err := r.gw.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}

	if len(filters.Tags) == 0 {
		return rows, nil
	}
	return filterByTags(rows, filters.Tags), nil
}

func filterByTags(rows []graph.Row, tags []string) []graph.Row {
	wanted := make(map[string]bool, len(tags))
	for _, t := range tags {
		wanted[t] = true
	}

	out := make([]graph.Row, 0, len(rows))
	for _, row := range rows {
		props := graph.NodeProperties(row["n"])
		nodeTags := graph.NormalizeStringSlice(props["tags"])
		for _, t := range nodeTags {
			if wanted[t] {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// CreateRelationship idempotently merges a typed edge between two existing
// tenant-scoped nodes.
func (r *Repository) CreateRelationship(ctx context.Context, tenantID, fromLabel, fromID, toLabel, toID string, relType models.RelationshipType, props map[string]any) (bool, error) {
	if !validIdentifier(fromLabel) || !validIdentifier(toLabel) {
		return false, graphkgerrors.Internal(nil, "invalid node label in relationship")
	}
	if !identifierPattern.MatchString(string(relType)) {
		return false, graphkgerrors.Internal(nil, "invalid relationship type %q", relType)
	}

	params := map[string]any{
		"fromID": fromID,
		"toID":   toID,
		"tenant": tenantID,
	}
	setClauses := make([]string, 0, len(props))
	for k, v := range props {
		if !validIdentifier(k) {
			return false, graphkgerrors.Internal(nil, "invalid relationship property key %q", k)
		}
		params["p_"+k] = v
		setClauses = append(setClauses, fmt.Sprintf("r.%s = $p_%s", k, k))
	}
	setClause := ""
	if len(setClauses) > 0 {
		setClause = "SET " + strings.Join(setClauses, ", ")
	}

	query := fmt.Sprintf(`
MATCH (from:%s {id: $fromID}) WHERE %s
MATCH (to:%s {id: $toID}) WHERE %s
MERGE (from)-[r:%s]->(to)
ON CREATE SET r.__created = true
ON MATCH SET r.__created = false
%s
WITH r, r.__created AS created
REMOVE r.__created
RETURN created
`, fromLabel, tenant.ScopeClause("from", "tenant"), toLabel, tenant.ScopeClause("to", "tenant"), relType, setClause)

	res, err := r.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		return graph.RunAndCollect(ctx, tx, query, params)
	})
	if err != nil {
		return false, err
	}

	rows := res.([]graph.Row)
	if len(rows) == 0 {
		return false, graphkgerrors.NotFound("relationship endpoint %s/%s or %s/%s not found", fromLabel, fromID, toLabel, toID)
	}
	return graph.NormalizeBool(rows[0]["created"]), nil
}

// Direction constrains ListRelationships to a node's incoming, outgoing, or
// both edge sets.
type Direction string

const (
	DirectionOutgoing Direction = "out"
	DirectionIncoming Direction = "in"
	DirectionBoth      Direction = "both"
)

// ListRelationships returns every typed edge touching nodeID within tenant.
func (r *Repository) ListRelationships(ctx context.Context, tenantID, nodeID string, direction Direction) ([]models.Relationship, error) {
	var pattern string
	switch direction {
	case DirectionIncoming:
		pattern = "(n {id: $id})<-[r]-(m)"
	case DirectionOutgoing:
		pattern = "(n {id: $id})-[r]->(m)"
	default:
		pattern = "(n {id: $id})-[r]-(m)"
	}

	query := fmt.Sprintf(`
MATCH %s
WHERE %s
RETURN type(r) AS relType, n.id AS fromId, m.id AS toId, properties(r) AS props,
       startNode(r).id AS startId
`, pattern, tenant.ScopeClause("n", "tenant"))

	rows, err := r.gw.Execute(ctx, query, map[string]any{"id": nodeID, "tenant": tenantID})
	if err != nil {
		return nil, err
	}

	out := make([]models.Relationship, 0, len(rows))
	for _, row := range rows {
		fromID := graph.NormalizeString(row["fromId"])
		toID := graph.NormalizeString(row["toId"])
		// startNode(r).id tells us which of n/m is actually the edge's
		// source; for DirectionBoth the n/m pairing alone is ambiguous.
		if startID := graph.NormalizeString(row["startId"]); startID == toID && startID != fromID {
			fromID, toID = toID, fromID
		}
		props, _ := row["props"].(map[string]any)
		out = append(out, models.Relationship{
			Type:       models.RelationshipType(graph.NormalizeString(row["relType"])),
			FromID:     fromID,
			ToID:       toID,
			Properties: props,
		})
	}
	return out, nil
}

// AppendEvent writes an immutable Event node, MERGE-on-id so a duplicate
// replay (spec.md §4.8 "Idempotence": DLQ retry re-applies the same
// event) never creates a second node. Events use a single `project_id`
// tenant property rather than the dual graph_id/graphId convention every
// other entity uses (spec.md §3: Event's tenant key already equals the
// graphId by construction, with no archived-data spelling history to
// reconcile), so this bypasses tenant.WriteClause/ScopeClause entirely.
func (r *Repository) AppendEvent(ctx context.Context, tenantID string, event *models.Event) error {
	if event.ID == "" {
		return graphkgerrors.Validation("event id is required")
	}

	_, err := r.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		return graph.RunAndCollect(ctx, tx, `
MERGE (ev:Event {id: $id})
ON CREATE SET
  ev.project_id = $tenant,
  ev.user_id = $userId,
  ev.agent_id = $agentId,
  ev.timestamp = $timestamp,
  ev.category = $category,
  ev.description = $description,
  ev.files = $files,
  ev.impact = $impact,
  ev.branch = $branch,
  ev.tags = $tags,
  ev.shared = $shared,
  ev.commit_hash = $commitHash,
  ev.pressure = $pressure
RETURN ev`, map[string]any{
			"id":          event.ID,
			"tenant":      tenantID,
			"userId":      event.UserID,
			"agentId":     event.AgentID,
			"timestamp":   event.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			"category":    event.Category,
			"description": event.Description,
			"files":       event.Files,
			"impact":      string(event.Impact),
			"branch":      event.Branch,
			"tags":        event.Tags,
			"shared":      event.Shared,
			"commitHash":  event.CommitHash,
			"pressure":    event.Pressure,
		})
	})
	return err
}
