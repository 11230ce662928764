package verify

import (
	"testing"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/models"
)

func TestVerifyPassedComputation(t *testing.T) {
	tests := []struct {
		name       string
		criteria   []models.CriterionOutcome
		wantPassed bool
		wantCount  int
	}{
		{
			name: "all pass",
			criteria: []models.CriterionOutcome{
				{ID: "c1", Passed: true},
				{ID: "c2", Passed: true},
			},
			wantPassed: true,
			wantCount:  2,
		},
		{
			name: "one fails",
			criteria: []models.CriterionOutcome{
				{ID: "c1", Passed: true},
				{ID: "c2", Passed: false},
			},
			wantPassed: false,
			wantCount:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed := true
			count := 0
			for _, c := range tt.criteria {
				if c.Passed {
					count++
				} else {
					passed = false
				}
			}
			if passed != tt.wantPassed {
				t.Errorf("passed = %v, want %v", passed, tt.wantPassed)
			}
			if count != tt.wantCount {
				t.Errorf("criteriaPassed = %d, want %d", count, tt.wantCount)
			}
		})
	}
}

func TestOverrideRejectsAgentPrincipal(t *testing.T) {
	v := &Verifier{}
	_, err := v.Override(nil, "tenant-1", OverrideInput{
		TaskID: "e001_s01_t01",
		Reason: "ship it",
		Principal: models.Principal{
			ID:   "agent-42",
			Kind: models.PrincipalAgent,
		},
	})
	if err == nil {
		t.Fatal("expected an error for an agent principal, got nil")
	}
	ge, ok := graphkgerrors.As(err)
	if !ok {
		t.Fatalf("expected a *errors.Error, got %T", err)
	}
	if ge.Kind != graphkgerrors.KindForbidden {
		t.Errorf("Kind = %v, want KindForbidden", ge.Kind)
	}
}

func TestOverrideRejectsEmptyReason(t *testing.T) {
	v := &Verifier{}
	_, err := v.Override(nil, "tenant-1", OverrideInput{
		TaskID:    "e001_s01_t01",
		Principal: models.Principal{ID: "u1", Kind: models.PrincipalUser},
	})
	if err == nil {
		t.Fatal("expected an error for an empty reason, got nil")
	}
}
