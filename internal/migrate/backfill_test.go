package migrate

import "testing"

func TestConvergeTenantPropsFillsMissingSpelling(t *testing.T) {
	set, needed := convergeTenantProps(map[string]any{"graphId": "t1"})
	if !needed || set["graph_id"] != "t1" {
		t.Errorf("convergeTenantProps = (%v, %v), want graph_id=t1", set, needed)
	}

	set, needed = convergeTenantProps(map[string]any{"graph_id": "t1"})
	if !needed || set["graphId"] != "t1" {
		t.Errorf("convergeTenantProps = (%v, %v), want graphId=t1", set, needed)
	}
}

func TestConvergeTenantPropsNoOpWhenBothPresentOrBothMissing(t *testing.T) {
	_, needed := convergeTenantProps(map[string]any{"graph_id": "t1", "graphId": "t1"})
	if needed {
		t.Error("expected no change when both spellings already present")
	}
	_, needed = convergeTenantProps(map[string]any{})
	if needed {
		t.Error("expected no change when neither spelling is present (nothing to copy from)")
	}
}

func TestDeriveEpicIDFromSprint(t *testing.T) {
	tests := []struct {
		sprintID  string
		wantEpic  string
		wantFound bool
	}{
		{"e001_s02", "e001", true},
		{"adhoc_260731_s01", "", false},
		{"not-an-id", "", false},
	}
	for _, tt := range tests {
		got, found := deriveEpicIDFromSprint(tt.sprintID)
		if got != tt.wantEpic || found != tt.wantFound {
			t.Errorf("deriveEpicIDFromSprint(%q) = (%q, %v), want (%q, %v)", tt.sprintID, got, found, tt.wantEpic, tt.wantFound)
		}
	}
}

func TestRegistryNamesCoverAllMigrations(t *testing.T) {
	names := Names()
	if len(names) != len(registry) {
		t.Fatalf("Names() returned %d entries, want %d", len(names), len(registry))
	}
	want := map[string]bool{
		"M009_roadmap_props": true, "M010_epic_graph_id": true,
		"M011_sprint_task_epic_graph_id": true, "M013_default_status_active": true,
		"M014_goal_to_content": true,
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected registered migration %q", n)
		}
	}
}

func TestM013ApplyAlwaysNeeded(t *testing.T) {
	var m *backfill
	for i := range registry {
		if registry[i].Name == "M013_default_status_active" {
			m = &registry[i]
		}
	}
	if m == nil {
		t.Fatal("M013 not registered")
	}
	set, needed := m.Apply(map[string]any{})
	if !needed || set["status"] != "active" {
		t.Errorf("M013 Apply = (%v, %v), want status=active", set, needed)
	}
}

// TestM014ApplySkipsOnceContentPopulated mirrors spec.md Scenario S6: a
// Sprint with goal set and content empty migrates once, and a second Apply
// against the now-populated row reports needed=false rather than being
// filtered out of Find entirely (which would make the row invisible to
// every future scan instead of reporting it as skipped).
func TestM014ApplySkipsOnceContentPopulated(t *testing.T) {
	var m *backfill
	for i := range registry {
		if registry[i].Name == "M014_goal_to_content" {
			m = &registry[i]
		}
	}
	if m == nil {
		t.Fatal("M014 not registered")
	}
	if m.Label != "Sprint" {
		t.Errorf("M014 Label = %q, want Sprint", m.Label)
	}

	set, needed := m.Apply(map[string]any{"goal": "do X"})
	if !needed || set["content"] != "do X" {
		t.Errorf("M014 Apply (first run) = (%v, %v), want content=\"do X\"", set, needed)
	}

	_, needed = m.Apply(map[string]any{"goal": "do X", "content": "do X"})
	if needed {
		t.Error("M014 Apply (second run) should report needed=false once content is already populated")
	}
}
