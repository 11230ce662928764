package events

import (
	"testing"

	"github.com/graphkg/service/internal/models"
)

func TestReverse(t *testing.T) {
	events := []models.Event{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	reverse(events)
	if events[0].ID != "c" || events[1].ID != "b" || events[2].ID != "a" {
		t.Errorf("reverse() = %v", events)
	}
}

func TestReverseEmptyAndSingle(t *testing.T) {
	empty := []models.Event{}
	reverse(empty)
	if len(empty) != 0 {
		t.Error("reverse of empty slice should remain empty")
	}

	single := []models.Event{{ID: "only"}}
	reverse(single)
	if single[0].ID != "only" {
		t.Error("reverse of a single-element slice should be a no-op")
	}
}

func TestToAnySlice(t *testing.T) {
	out := toAnySlice([]string{"a", "b"})
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Errorf("toAnySlice() = %v", out)
	}
}

func TestEventFromProps(t *testing.T) {
	e := eventFromProps(map[string]any{
		"id": "ev1", "user_id": "u1", "category": "fix", "shared": true,
	})
	if e.ID != "ev1" || e.UserID != "u1" || e.Category != "fix" || !e.Shared {
		t.Errorf("eventFromProps() = %+v", e)
	}
}
