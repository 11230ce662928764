package tenant

import "testing"

func TestScopeClause(t *testing.T) {
	got := ScopeClause("n", "tenant")
	want := "(n.graph_id = $tenant OR n.graphId = $tenant)"
	if got != want {
		t.Errorf("ScopeClause() = %q, want %q", got, want)
	}
}

func TestWriteProperties(t *testing.T) {
	props := WriteProperties("acme")
	if props["graph_id"] != "acme" || props["graphId"] != "acme" {
		t.Errorf("WriteProperties() = %v, want both spellings set to acme", props)
	}
}

func TestMatchesEither(t *testing.T) {
	if !MatchesEither("acme", nil, "acme") {
		t.Error("expected match on snake_case field")
	}
	if !MatchesEither(nil, "acme", "acme") {
		t.Error("expected match on camelCase field")
	}
	if MatchesEither("other", "other", "acme") {
		t.Error("expected no match for a different tenant")
	}
	if MatchesEither(nil, nil, "acme") {
		t.Error("expected no match when both fields are absent")
	}
}

func TestArchiveNamespace(t *testing.T) {
	got := ArchiveNamespace("acme", "20260731")
	want := "acme_archive_duplicates_20260731"
	if got != want {
		t.Errorf("ArchiveNamespace() = %q, want %q", got, want)
	}
}
