// Package synthesis implements the Context Synthesizer (C6, spec.md §4.6):
// the session-start composite call that replaces 4-7 sequential round-trips
// with one fan-out/fan-in response, plus the sibling strategicContext entry
// point.
package synthesis

import (
	"context"
	"sort"
	"time"

	"github.com/graphkg/service/internal/config"
	"github.com/graphkg/service/internal/fanout"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/models"
	"github.com/graphkg/service/internal/tenant"
)

// Synthesizer runs the session-start and strategicContext aggregate
// queries. Grounded on the teacher's internal/diffanalyzer/analyzer.go
// STEP 4 for the fan-out-with-per-task-failure-containment shape (see
// internal/fanout), generalized from four risk-dimension queries per code
// block to the four session-start queries of spec.md §4.6.
type Synthesizer struct {
	gw  *graph.Gateway
	cfg config.SynthesisConfig
}

func New(gw *graph.Gateway, cfg config.SynthesisConfig) *Synthesizer {
	return &Synthesizer{gw: gw, cfg: cfg}
}

// ActiveSprint is the resolved sprint plus its Epic, Tasks, and the
// current task selected per spec.md §4.6.1.
type ActiveSprint struct {
	Sprint      models.Sprint
	Epic        *models.Epic
	Tasks       []models.Task
	CurrentTask *models.Task

	// Populated by the enrichment phase when CurrentTask is non-nil; left
	// nil when there is no current task to enrich against.
	Patterns       []models.Pattern
	Gotchas        []models.Gotcha
	ADRConstraints []models.Document
}

// CharterSummary is the {purpose, goals} projection of the Charter
// Document node. Open Question (spec.md §9): the Charter's Document shape
// has `content`/`summary`, not `purpose`/`goals` fields; this maps
// content -> Purpose and summary -> Goals (see DESIGN.md).
type CharterSummary struct {
	Purpose string
	Goals   string
}

// Metadata reports load statistics and the tokenEstimate heuristic of
// spec.md §4.6.
type Metadata struct {
	LoadTimeMs    int64
	SprintFound   bool
	TaskCount     int
	EventCount    int
	TokenEstimate int
}

// SessionStartInput is the {tenant, userId, sprintId?, eventLimit,
// teamEventDays} input of spec.md §4.6.
type SessionStartInput struct {
	TenantID      string
	UserID        string
	SprintID      string
	EventLimit    int
	TeamEventDays int
}

// SessionStartResult is the single aggregate response.
type SessionStartResult struct {
	ActiveSprint *ActiveSprint
	RecentEvents []models.Event
	Charter      *CharterSummary
	TeamActivity []models.Event
	Epic         *models.Epic
	Metadata     Metadata
}

// SessionStart runs the fan-out phase (four concurrent queries), then the
// conditional enrichment phase (three more concurrent queries against the
// resolved current task), and reduces both into one aggregate. Per
// spec.md §8 property 10, no single query's failure aborts the others —
// fanout.Run converts failures to empty/nil contributions.
func (s *Synthesizer) SessionStart(ctx context.Context, in SessionStartInput) (*SessionStartResult, error) {
	start := time.Now()

	if in.EventLimit <= 0 {
		in.EventLimit = s.cfg.DefaultEventLimit
	}
	if in.TeamEventDays <= 0 {
		in.TeamEventDays = s.cfg.TeamEventDays
	}

	budget := s.cfg.WallClockBudget
	if budget <= 0 {
		budget = 2 * time.Second
	}
	phase1Ctx, cancelPhase1 := context.WithTimeout(ctx, budget)
	defer cancelPhase1()

	phase1 := fanout.Run(phase1Ctx, []fanout.Task{
		{Name: "activeSprint", Run: func(ctx context.Context) (any, error) {
			return s.resolveActiveSprint(ctx, in.TenantID, in.SprintID)
		}},
		{Name: "recentEvents", Run: func(ctx context.Context) (any, error) {
			return s.loadRecentEvents(ctx, in.TenantID, in.UserID, in.EventLimit)
		}},
		{Name: "charter", Run: func(ctx context.Context) (any, error) {
			return s.loadCharter(ctx, in.TenantID)
		}},
		{Name: "teamActivity", Run: func(ctx context.Context) (any, error) {
			return s.loadTeamActivity(ctx, in.TenantID, in.UserID, in.TeamEventDays)
		}},
	})

	result := &SessionStartResult{}

	if v := phase1["activeSprint"].Value; v != nil {
		result.ActiveSprint = v.(*ActiveSprint)
		result.Epic = result.ActiveSprint.Epic
	}
	if v := phase1["recentEvents"].Value; v != nil {
		result.RecentEvents = v.([]models.Event)
	}
	if v := phase1["charter"].Value; v != nil {
		result.Charter = v.(*CharterSummary)
	}
	if v := phase1["teamActivity"].Value; v != nil {
		result.TeamActivity = v.([]models.Event)
	}

	if result.ActiveSprint != nil && result.ActiveSprint.CurrentTask != nil {
		taskID := result.ActiveSprint.CurrentTask.ID
		phase2 := fanout.Run(ctx, []fanout.Task{
			{Name: "patterns", Run: func(ctx context.Context) (any, error) {
				return s.loadPatterns(ctx, in.TenantID, taskID)
			}},
			{Name: "gotchas", Run: func(ctx context.Context) (any, error) {
				return s.loadGotchas(ctx, in.TenantID, taskID)
			}},
			{Name: "adrConstraints", Run: func(ctx context.Context) (any, error) {
				return s.loadADRConstraints(ctx, in.TenantID, taskID)
			}},
		})
		if v := phase2["patterns"].Value; v != nil {
			result.ActiveSprint.Patterns = v.([]models.Pattern)
		}
		if v := phase2["gotchas"].Value; v != nil {
			result.ActiveSprint.Gotchas = v.([]models.Gotcha)
		}
		if v := phase2["adrConstraints"].Value; v != nil {
			result.ActiveSprint.ADRConstraints = v.([]models.Document)
		}
	}

	taskCount := 0
	if result.ActiveSprint != nil {
		taskCount = len(result.ActiveSprint.Tasks)
	}
	result.Metadata = Metadata{
		LoadTimeMs:  time.Since(start).Milliseconds(),
		SprintFound: result.ActiveSprint != nil,
		TaskCount:   taskCount,
		EventCount:  len(result.RecentEvents),
		TokenEstimate: s.cfg.TokenBase +
			s.cfg.TokenPerTask*taskCount +
			s.cfg.TokenPerEvent*len(result.RecentEvents) +
			charterTokens(s.cfg, result.Charter) +
			s.cfg.TokenPerTeamEvent*len(result.TeamActivity),
	}

	return result, nil
}

func charterTokens(cfg config.SynthesisConfig, c *CharterSummary) int {
	if c == nil {
		return 0
	}
	return cfg.TokenForCharter
}

// StrategicContextInput is the input to the strategicContext sibling entry
// point (spec.md §4.6.2).
type StrategicContextInput struct {
	TenantID string
	Tags     []string
	TopK     int
}

// StrategicContextResult mirrors SessionStart's fan-out discipline but
// surfaces top-K recently-created patterns/gotchas/decisions instead of a
// sprint-scoped enrichment.
type StrategicContextResult struct {
	Charter      *CharterSummary
	TeamActivity []models.Event
	Patterns     []models.Pattern
	Gotchas      []models.Gotcha
}

func (s *Synthesizer) StrategicContext(ctx context.Context, in StrategicContextInput) (*StrategicContextResult, error) {
	topK := in.TopK
	if topK <= 0 {
		topK = 10
	}

	results := fanout.Run(ctx, []fanout.Task{
		{Name: "charter", Run: func(ctx context.Context) (any, error) {
			return s.loadCharter(ctx, in.TenantID)
		}},
		{Name: "teamActivity", Run: func(ctx context.Context) (any, error) {
			return s.loadTeamActivity(ctx, in.TenantID, "", s.cfg.TeamEventDays)
		}},
		{Name: "patterns", Run: func(ctx context.Context) (any, error) {
			return s.loadTopPatterns(ctx, in.TenantID, in.Tags, topK)
		}},
		{Name: "gotchas", Run: func(ctx context.Context) (any, error) {
			return s.loadTopGotchas(ctx, in.TenantID, in.Tags, topK)
		}},
	})

	out := &StrategicContextResult{}
	if v := results["charter"].Value; v != nil {
		out.Charter = v.(*CharterSummary)
	}
	if v := results["teamActivity"].Value; v != nil {
		out.TeamActivity = v.([]models.Event)
	}
	if v := results["patterns"].Value; v != nil {
		out.Patterns = v.([]models.Pattern)
	}
	if v := results["gotchas"].Value; v != nil {
		out.Gotchas = v.([]models.Gotcha)
	}
	return out, nil
}

// resolveActiveSprint runs the three-strategy cascade of spec.md §4.6.1.
func (s *Synthesizer) resolveActiveSprint(ctx context.Context, tenantID, sprintID string) (*ActiveSprint, error) {
	if sprintID != "" {
		if as, err := s.strategyA(ctx, tenantID, sprintID); err != nil {
			return nil, err
		} else if as != nil {
			return as, nil
		}
	}

	if as, err := s.strategyB(ctx, tenantID); err != nil {
		return nil, err
	} else if as != nil {
		return as, nil
	}

	return s.strategyC(ctx, tenantID)
}

func (s *Synthesizer) strategyA(ctx context.Context, tenantID, sprintID string) (*ActiveSprint, error) {
	cypher := `
		MATCH (s:Sprint {id: $sprintId})
		WHERE ` + tenant.ScopeClause("s", "tenantId") + `
		OPTIONAL MATCH (s)-[:BELONGS_TO]->(e:Epic)
		OPTIONAL MATCH (s)-[:CONTAINS]->(t:Task)
		OPTIONAL MATCH (s)-[:NEXT_TASK]->(nt:Task)
		RETURN s, e, collect(DISTINCT t) AS tasks, nt`

	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"sprintId": sprintID, "tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return activeSprintFromRow(rows[0]), nil
}

func (s *Synthesizer) strategyB(ctx context.Context, tenantID string) (*ActiveSprint, error) {
	cypher := `
		MATCH (s:Sprint)
		WHERE ` + tenant.ScopeClause("s", "tenantId") + ` AND s.status <> 'complete'
		OPTIONAL MATCH (s)-[:BELONGS_TO]->(e:Epic)
		WITH s, e
		WHERE e IS NULL OR NOT (e.roadmap_lane IN ['done', 'dropped'])
		MATCH (s)-[:CONTAINS]->(incomplete:Task)
		WHERE incomplete.status <> 'complete'
		WITH s, e, count(incomplete) AS incompleteCount
		WHERE incompleteCount > 0
		OPTIONAL MATCH (s)-[:CONTAINS]->(any:Task)
		WITH s, e, max(any.updatedAt) AS maxTaskUpdatedAt
		ORDER BY (maxTaskUpdatedAt IS NULL) ASC, maxTaskUpdatedAt DESC
		LIMIT 1
		OPTIONAL MATCH (s)-[:CONTAINS]->(t:Task)
		OPTIONAL MATCH (s)-[:NEXT_TASK]->(nt:Task)
		RETURN s, e, collect(DISTINCT t) AS tasks, nt`

	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return activeSprintFromRow(rows[0]), nil
}

func (s *Synthesizer) strategyC(ctx context.Context, tenantID string) (*ActiveSprint, error) {
	cypher := `
		MATCH (s:Sprint)
		WHERE ` + tenant.ScopeClause("s", "tenantId") + `
		OPTIONAL MATCH (s)-[:BELONGS_TO]->(e:Epic)
		OPTIONAL MATCH (s)-[:CONTAINS]->(t:Task)
		OPTIONAL MATCH (s)-[:NEXT_TASK]->(nt:Task)
		WITH s, e, nt, collect(DISTINCT t) AS tasks
		ORDER BY s.createdAt DESC
		LIMIT 1
		RETURN s, e, tasks, nt`

	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return activeSprintFromRow(rows[0]), nil
}

// activeSprintFromRow assembles an ActiveSprint from one strategy row and
// applies the "current task" selection rule of spec.md §4.6.1: the
// NEXT_TASK target if present, otherwise the first task (by insertion
// order, i.e. createdAt) whose status is neither complete nor blocked.
func activeSprintFromRow(row graph.Row) *ActiveSprint {
	sp := graph.NodeProperties(row["s"])
	if sp == nil {
		return nil
	}
	as := &ActiveSprint{Sprint: sprintFromProps(sp)}

	if ep := graph.NodeProperties(row["e"]); ep != nil {
		epic := epicFromProps(ep)
		as.Epic = &epic
	}

	var taskProps []map[string]any
	for _, raw := range asSlice(row["tasks"]) {
		if tp := graph.NodeProperties(raw); tp != nil {
			taskProps = append(taskProps, tp)
		}
	}
	sort.SliceStable(taskProps, func(i, j int) bool {
		ci, _ := taskProps[i]["createdAt"].(time.Time)
		cj, _ := taskProps[j]["createdAt"].(time.Time)
		return ci.Before(cj)
	})
	for _, tp := range taskProps {
		as.Tasks = append(as.Tasks, taskFromProps(tp))
	}

	if ntp := graph.NodeProperties(row["nt"]); ntp != nil {
		t := taskFromProps(ntp)
		as.CurrentTask = &t
	} else {
		for i := range as.Tasks {
			if as.Tasks[i].Status != models.TaskComplete && as.Tasks[i].Status != models.TaskBlocked {
				as.CurrentTask = &as.Tasks[i]
				break
			}
		}
	}

	return as
}

func (s *Synthesizer) loadRecentEvents(ctx context.Context, tenantID, userID string, limit int) ([]models.Event, error) {
	cypher := `
		MATCH (ev:Event {project_id: $tenantId, user_id: $userId})
		RETURN ev ORDER BY ev.timestamp DESC LIMIT $limit`
	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"tenantId": tenantID, "userId": userID, "limit": limit})
	if err != nil {
		return nil, err
	}
	return eventsFromRows(rows, "ev"), nil
}

func (s *Synthesizer) loadTeamActivity(ctx context.Context, tenantID, excludeUserID string, days int) ([]models.Event, error) {
	since := time.Now().AddDate(0, 0, -days)
	cypher := `
		MATCH (ev:Event {project_id: $tenantId})
		WHERE ev.user_id <> $excludeUserId
		  AND ev.category IN ['decision', 'achievement', 'git', 'fix', 'feature']
		  AND ev.timestamp >= $since
		  AND (ev.shared = true OR ev.impact = 'high')
		RETURN ev ORDER BY ev.timestamp DESC LIMIT 10`
	rows, err := s.gw.Execute(ctx, cypher, map[string]any{
		"tenantId":      tenantID,
		"excludeUserId": excludeUserID,
		"since":         since.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return eventsFromRows(rows, "ev"), nil
}

func (s *Synthesizer) loadCharter(ctx context.Context, tenantID string) (*CharterSummary, error) {
	cypher := `
		MATCH (c:Charter)
		WHERE ` + tenant.ScopeClause("c", "tenantId") + `
		RETURN c LIMIT 1`
	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	props := graph.NodeProperties(rows[0]["c"])
	if props == nil {
		return nil, nil
	}
	return &CharterSummary{
		Purpose: graph.NormalizeString(props["content"]),
		Goals:   graph.NormalizeString(props["summary"]),
	}, nil
}

func (s *Synthesizer) loadPatterns(ctx context.Context, tenantID, taskID string) ([]models.Pattern, error) {
	cypher := `
		MATCH (:Task {id: $taskId})-[:APPLIES_PATTERN]->(p:Pattern)
		WHERE ` + tenant.ScopeClause("p", "tenantId") + `
		RETURN p ORDER BY p.confidenceScore DESC`
	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"taskId": taskID, "tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	patterns := make([]models.Pattern, 0, len(rows))
	for _, row := range rows {
		if props := graph.NodeProperties(row["p"]); props != nil {
			patterns = append(patterns, patternFromProps(props))
		}
	}
	return patterns, nil
}

func (s *Synthesizer) loadGotchas(ctx context.Context, tenantID, taskID string) ([]models.Gotcha, error) {
	cypher := `
		MATCH (:Task {id: $taskId})-[:AVOID_GOTCHA]->(g:Gotcha)
		WHERE ` + tenant.ScopeClause("g", "tenantId") + `
		RETURN g ORDER BY
		  CASE g.severity
		    WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END,
		  g.confidenceScore DESC`
	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"taskId": taskID, "tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	gotchas := make([]models.Gotcha, 0, len(rows))
	for _, row := range rows {
		if props := graph.NodeProperties(row["g"]); props != nil {
			gotchas = append(gotchas, gotchaFromProps(props))
		}
	}
	return gotchas, nil
}

func (s *Synthesizer) loadADRConstraints(ctx context.Context, tenantID, taskID string) ([]models.Document, error) {
	cypher := `
		MATCH (:Task {id: $taskId})-[:MUST_FOLLOW]->(a:ADR)
		WHERE ` + tenant.ScopeClause("a", "tenantId") + `
		RETURN a`
	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"taskId": taskID, "tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		if props := graph.NodeProperties(row["a"]); props != nil {
			docs = append(docs, documentFromProps(props))
		}
	}
	return docs, nil
}

func (s *Synthesizer) loadTopPatterns(ctx context.Context, tenantID string, tags []string, topK int) ([]models.Pattern, error) {
	cypher := `
		MATCH (p:Pattern)
		WHERE ` + tenant.ScopeClause("p", "tenantId") + tagFilterClause("p", tags) + `
		RETURN p ORDER BY p.createdAt DESC LIMIT $topK`
	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"tenantId": tenantID, "topK": topK, "tags": anySlice(tags)})
	if err != nil {
		return nil, err
	}
	patterns := make([]models.Pattern, 0, len(rows))
	for _, row := range rows {
		if props := graph.NodeProperties(row["p"]); props != nil {
			patterns = append(patterns, patternFromProps(props))
		}
	}
	return patterns, nil
}

func (s *Synthesizer) loadTopGotchas(ctx context.Context, tenantID string, tags []string, topK int) ([]models.Gotcha, error) {
	cypher := `
		MATCH (g:Gotcha)
		WHERE ` + tenant.ScopeClause("g", "tenantId") + tagFilterClause("g", tags) + `
		RETURN g ORDER BY g.createdAt DESC LIMIT $topK`
	rows, err := s.gw.Execute(ctx, cypher, map[string]any{"tenantId": tenantID, "topK": topK, "tags": anySlice(tags)})
	if err != nil {
		return nil, err
	}
	gotchas := make([]models.Gotcha, 0, len(rows))
	for _, row := range rows {
		if props := graph.NodeProperties(row["g"]); props != nil {
			gotchas = append(gotchas, gotchaFromProps(props))
		}
	}
	return gotchas, nil
}

// tagFilterClause appends an optional tag-set intersection predicate
// (spec.md §4.6.2 "optionally filtered by tag-set intersection").
func tagFilterClause(alias string, tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " AND any(tag IN " + alias + ".tags WHERE tag IN $tags)"
}

func anySlice(tags []string) []any {
	out := make([]any, len(tags))
	for i, t := range tags {
		out[i] = t
	}
	return out
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func sprintFromProps(p map[string]any) models.Sprint {
	return models.Sprint{
		ID:       graph.NormalizeString(p["id"]),
		Title:    graph.NormalizeString(p["title"]),
		EpicID:   graph.NormalizeString(p["epic_id"]),
		Status:   graph.NormalizeString(p["status"]),
		Progress: int(graph.NormalizeValue(p["progress"])),
	}
}

func epicFromProps(p map[string]any) models.Epic {
	return models.Epic{
		ID:            graph.NormalizeString(p["id"]),
		EpicID:        graph.NormalizeString(p["epic_id"]),
		Title:         graph.NormalizeString(p["title"]),
		Status:        models.EpicStatus(graph.NormalizeString(p["status"])),
		Progress:      int(graph.NormalizeValue(p["progress"])),
		RoadmapStatus: graph.NormalizeString(p["roadmap_status"]),
		RoadmapLane:   graph.NormalizeString(p["roadmap_lane"]),
	}
}

func taskFromProps(p map[string]any) models.Task {
	return models.Task{
		ID:       graph.NormalizeString(p["id"]),
		Title:    graph.NormalizeString(p["title"]),
		SprintID: graph.NormalizeString(p["sprint_id"]),
		EpicID:   graph.NormalizeString(p["epic_id"]),
		Status:   models.TaskStatus(graph.NormalizeString(p["status"])),
		Owner:    graph.NormalizeString(p["owner"]),
	}
}

func patternFromProps(p map[string]any) models.Pattern {
	return models.Pattern{
		ID:              graph.NormalizeString(p["id"]),
		Title:           graph.NormalizeString(p["title"]),
		Confidence:      models.Confidence(graph.NormalizeString(p["confidence"])),
		ConfidenceScore: int(graph.NormalizeValue(p["confidenceScore"])),
		Category:        graph.NormalizeString(p["category"]),
	}
}

func gotchaFromProps(p map[string]any) models.Gotcha {
	return models.Gotcha{
		ID:              graph.NormalizeString(p["id"]),
		Title:           graph.NormalizeString(p["title"]),
		Severity:        models.Severity(graph.NormalizeString(p["severity"])),
		ConfidenceScore: int(graph.NormalizeValue(p["confidenceScore"])),
		Symptom:         graph.NormalizeString(p["symptom"]),
		Cause:           graph.NormalizeString(p["cause"]),
		Solution:        graph.NormalizeString(p["solution"]),
	}
}

func documentFromProps(p map[string]any) models.Document {
	return models.Document{
		ID:       graph.NormalizeString(p["id"]),
		Title:    graph.NormalizeString(p["title"]),
		Content:  graph.NormalizeString(p["content"]),
		Summary:  graph.NormalizeString(p["summary"]),
		Tags:     graph.NormalizeStringSlice(p["tags"]),
		Category: graph.NormalizeString(p["category"]),
	}
}

func eventsFromRows(rows []graph.Row, alias string) []models.Event {
	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		props := graph.NodeProperties(row[alias])
		if props == nil {
			continue
		}
		events = append(events, models.Event{
			ID:          graph.NormalizeString(props["id"]),
			UserID:      graph.NormalizeString(props["user_id"]),
			ProjectID:   graph.NormalizeString(props["project_id"]),
			Category:    graph.NormalizeString(props["category"]),
			Description: graph.NormalizeString(props["description"]),
			Files:       graph.NormalizeStringSlice(props["files"]),
			Impact:      models.Impact(graph.NormalizeString(props["impact"])),
			Branch:      graph.NormalizeString(props["branch"]),
			Tags:        graph.NormalizeStringSlice(props["tags"]),
			Shared:      graph.NormalizeBool(props["shared"]),
			CommitHash:  graph.NormalizeString(props["commit_hash"]),
		})
	}
	return events
}
