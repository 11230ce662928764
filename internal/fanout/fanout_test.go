package fanout

import (
	"context"
	"errors"
	"testing"
)

func TestRunCollectsAllResultsDespiteOneFailure(t *testing.T) {
	results := Run(context.Background(), []Task{
		{Name: "ok", Run: func(ctx context.Context) (any, error) { return 42, nil }},
		{Name: "fails", Run: func(ctx context.Context) (any, error) { return nil, errors.New("boom") }},
		{Name: "also-ok", Run: func(ctx context.Context) (any, error) { return "hi", nil }},
	})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results["ok"].Value != 42 || results["ok"].Err != nil {
		t.Errorf("ok task = %+v", results["ok"])
	}
	if results["fails"].Value != nil || results["fails"].Err == nil {
		t.Errorf("fails task should have nil value and non-nil error, got %+v", results["fails"])
	}
	if results["also-ok"].Value != "hi" {
		t.Errorf("also-ok task = %+v", results["also-ok"])
	}
}

func TestRunEmptyTaskList(t *testing.T) {
	results := Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
