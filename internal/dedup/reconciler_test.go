package dedup

import (
	"testing"
	"time"
)

func TestCanonicalSprintID(t *testing.T) {
	tests := []struct {
		id, sprintID, want string
	}{
		{"E001_S02", "", "e001_s02"},
		{"adhoc_260731_s01", "e001_s02", "e001_s02"},
		{"weird-id", "", "weird-id"},
	}
	for _, tt := range tests {
		if got := CanonicalSprintID(tt.id, tt.sprintID); got != tt.want {
			t.Errorf("CanonicalSprintID(%q, %q) = %q, want %q", tt.id, tt.sprintID, got, tt.want)
		}
	}
}

func TestCanonicalEpicID(t *testing.T) {
	tests := []struct {
		epicID, id, want string
	}{
		{"E001", "", "e001"},
		{"", "epic-7", "e007"},
		{"", "some-other-id", "some-other-id"},
	}
	for _, tt := range tests {
		if got := CanonicalEpicID(tt.epicID, tt.id); got != tt.want {
			t.Errorf("CanonicalEpicID(%q, %q) = %q, want %q", tt.epicID, tt.id, got, tt.want)
		}
	}
}

func TestGroupRank(t *testing.T) {
	older := time.Now().Add(-24 * time.Hour)
	newer := time.Now()

	g := &Group{Nodes: []Candidate{
		{ElementID: "b", ID: "b", Title: "has title", UpdatedAt: older},
		{ElementID: "a", ID: "a", Title: "has title", UpdatedAt: newer},
		{ElementID: "c", ID: "c", Title: "", UpdatedAt: newer},
	}}
	g.Rank()

	if g.Survivor().ID != "a" {
		t.Errorf("Survivor() = %q, want %q (most recently updated)", g.Survivor().ID, "a")
	}
	if len(g.Losers()) != 2 {
		t.Errorf("Losers() returned %d, want 2", len(g.Losers()))
	}
}

func TestGroupRankTieBreaksByElementID(t *testing.T) {
	same := time.Now()
	g := &Group{Nodes: []Candidate{
		{ElementID: "z", ID: "z", UpdatedAt: same},
		{ElementID: "a", ID: "a", UpdatedAt: same},
	}}
	g.Rank()

	if g.Survivor().ElementID != "a" {
		t.Errorf("Survivor() = %q, want %q (lexicographically first on tie)", g.Survivor().ElementID, "a")
	}
}

func TestPropertiesToCopy(t *testing.T) {
	survivor := Candidate{Properties: map[string]any{"title": "Survivor", "content": ""}}
	loser := Candidate{Properties: map[string]any{"content": "from the loser", "summary": "also from loser", "title": "should not overwrite"}}

	copied := propertiesToCopy(survivor, loser)

	if copied["content"] != "from the loser" {
		t.Errorf("content should be copied from loser, got %v", copied["content"])
	}
	if copied["summary"] != "also from loser" {
		t.Errorf("summary should be copied from loser, got %v", copied["summary"])
	}
	if _, present := copied["title"]; present {
		t.Error("title should not be copied: survivor already has a non-empty value")
	}
}

func TestIsEmpty(t *testing.T) {
	if !isEmpty(nil) {
		t.Error("nil should be empty")
	}
	if !isEmpty("") {
		t.Error("empty string should be empty")
	}
	if isEmpty("x") {
		t.Error("non-empty string should not be empty")
	}
	if isEmpty(0) {
		t.Error("zero int should not be considered empty (only nil/empty-string are)")
	}
}
