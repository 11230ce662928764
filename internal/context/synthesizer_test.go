package synthesis

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/graphkg/service/internal/config"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/models"
)

func node(props map[string]any) dbtype.Node {
	return dbtype.Node{Props: props}
}

func TestActiveSprintFromRowNextTaskWins(t *testing.T) {
	row := graph.Row{
		"s":     node(map[string]any{"id": "e001_s02", "title": "Sprint 2"}),
		"e":     nil,
		"tasks": []any{node(map[string]any{"id": "t1", "status": "not_started"})},
		"nt":    node(map[string]any{"id": "t2", "status": "blocked"}),
	}
	as := activeSprintFromRow(row)
	if as == nil {
		t.Fatal("expected a non-nil ActiveSprint")
	}
	if as.CurrentTask == nil || as.CurrentTask.ID != "t2" {
		t.Errorf("CurrentTask should be the NEXT_TASK target even if blocked, got %+v", as.CurrentTask)
	}
}

func TestActiveSprintFromRowFallsBackToFirstIncompleteTask(t *testing.T) {
	row := graph.Row{
		"s": node(map[string]any{"id": "e001_s02"}),
		"e": nil,
		"tasks": []any{
			node(map[string]any{"id": "t1", "status": "complete"}),
			node(map[string]any{"id": "t2", "status": "blocked"}),
			node(map[string]any{"id": "t3", "status": "in_progress"}),
		},
		"nt": nil,
	}
	as := activeSprintFromRow(row)
	if as.CurrentTask == nil || as.CurrentTask.ID != "t3" {
		t.Errorf("CurrentTask = %+v, want t3 (first non-complete, non-blocked)", as.CurrentTask)
	}
}

func TestActiveSprintFromRowNilWhenNoSprint(t *testing.T) {
	if activeSprintFromRow(graph.Row{"s": nil}) != nil {
		t.Error("expected nil ActiveSprint when the sprint node is absent")
	}
}

func TestTagFilterClauseEmpty(t *testing.T) {
	if got := tagFilterClause("p", nil); got != "" {
		t.Errorf("tagFilterClause(nil) = %q, want empty", got)
	}
}

func TestTagFilterClauseNonEmpty(t *testing.T) {
	got := tagFilterClause("p", []string{"go"})
	if got == "" {
		t.Error("expected a non-empty clause for a non-empty tag set")
	}
}

func TestCharterTokens(t *testing.T) {
	cfg := config.SynthesisConfig{TokenForCharter: 200}
	if charterTokens(cfg, nil) != 0 {
		t.Error("nil charter should contribute 0 tokens")
	}
	if charterTokens(cfg, &CharterSummary{}) != 200 {
		t.Error("present charter should contribute TokenForCharter tokens")
	}
}

func TestGotchaFromPropsPreservesSeverityOrdering(t *testing.T) {
	g := gotchaFromProps(map[string]any{"id": "g1", "severity": "high", "confidenceScore": int64(80)})
	if g.Severity != models.SeverityHigh {
		t.Errorf("Severity = %v, want high", g.Severity)
	}
	if g.Severity.Rank() != 1 {
		t.Errorf("Rank() = %d, want 1", g.Severity.Rank())
	}
}
