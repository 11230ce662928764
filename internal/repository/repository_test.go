package repository

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/graphkg/service/internal/graph"
)

func TestValidIdentifier(t *testing.T) {
	valid := []string{"Epic", "graph_id", "_private", "a1"}
	for _, v := range valid {
		if !validIdentifier(v) {
			t.Errorf("validIdentifier(%q) = false, want true", v)
		}
	}

	invalid := []string{"", "1Epic", "Epic; DROP", "epic-id", "epic id"}
	for _, v := range invalid {
		if validIdentifier(v) {
			t.Errorf("validIdentifier(%q) = true, want false", v)
		}
	}
}

func TestDeriveEpicIDFromSprint(t *testing.T) {
	tests := []struct {
		sprintID   string
		wantEpic   string
		wantFound  bool
	}{
		{"e001_s02", "e001", true},
		{"e123_s99", "e123", true},
		{"adhoc_260731_s01", "", false},
		{"not-a-valid-id", "", false},
	}
	for _, tt := range tests {
		got, found := deriveEpicIDFromSprint(tt.sprintID)
		if got != tt.wantEpic || found != tt.wantFound {
			t.Errorf("deriveEpicIDFromSprint(%q) = (%q, %v), want (%q, %v)", tt.sprintID, got, found, tt.wantEpic, tt.wantFound)
		}
	}
}

func TestSprintIDPattern(t *testing.T) {
	valid := []string{"e001_s02", "adhoc_260731_s01"}
	for _, v := range valid {
		if !sprintIDPattern.MatchString(v) {
			t.Errorf("sprintIDPattern should match %q", v)
		}
	}
	invalid := []string{"e1_s2", "sprint-1", ""}
	for _, v := range invalid {
		if sprintIDPattern.MatchString(v) {
			t.Errorf("sprintIDPattern should not match %q", v)
		}
	}
}

func TestListFiltersClamp(t *testing.T) {
	tests := []struct {
		name       string
		in         ListFilters
		wantLimit  int
		wantOffset int
	}{
		{"zero limit defaults to 100", ListFilters{Limit: 0}, 100, 0},
		{"over max clamps to 100", ListFilters{Limit: 500}, 100, 0},
		{"negative offset clamps to zero", ListFilters{Limit: 10, Offset: -5}, 10, 0},
		{"within bounds passes through", ListFilters{Limit: 25, Offset: 10}, 25, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.clamp()
			if got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
				t.Errorf("clamp() = %+v, want limit=%d offset=%d", got, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestFilterByTags(t *testing.T) {
	node := func(tags ...any) graph.Row {
		return graph.Row{"n": dbtype.Node{Props: map[string]any{"tags": tags}}}
	}
	rows := []graph.Row{
		node("go", "backend"),
		node("frontend"),
		node("go", "urgent"),
	}
	got := filterByTags(rows, []string{"go"})
	if len(got) != 2 {
		t.Errorf("filterByTags matched %d rows, want 2", len(got))
	}
}
