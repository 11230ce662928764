package migrate

import (
	"context"
	"testing"
)

func TestIsMalformedTitle(t *testing.T) {
	malformed := []string{
		"undefined",
		"null",
		"[object Object]",
		"{}",
		"[ ]",
		`function(a, b) { return a + b; }`,
		`// see "ticket-123" for details`,
		"GET /api/v1/tasks/123",
		"string[;",
	}
	for _, title := range malformed {
		if !isMalformedTitle(title) {
			t.Errorf("isMalformedTitle(%q) = false, want true", title)
		}
	}

	clean := []string{
		"Implement OAuth token refresh",
		"Fix flaky upload test",
		"",
	}
	for _, title := range clean {
		if isMalformedTitle(title) {
			t.Errorf("isMalformedTitle(%q) = true, want false", title)
		}
	}
}

func TestExtractCleanTitlePrefersQuotedSubstring(t *testing.T) {
	got := extractCleanTitle("Task", "e001_s02_t03", `function() { return "Retry failed uploads"; }`)
	if got != "Retry failed uploads" {
		t.Errorf("extractCleanTitle() = %q, want quoted substring", got)
	}
}

func TestExtractCleanTitleFallsBackToComment(t *testing.T) {
	got := extractCleanTitle("Task", "e001_s02_t03", "undefined // Retry failed uploads")
	if got != "Retry failed uploads" {
		t.Errorf("extractCleanTitle() = %q, want comment text", got)
	}
}

func TestExtractCleanTitleFallsBackToIDPattern(t *testing.T) {
	got := extractCleanTitle("Task", "e001_s02_t03", "[object Object]")
	if got != "Task 03 (Sprint 02)" {
		t.Errorf("extractCleanTitle() = %q, want id-derived fallback", got)
	}
}

func TestRunnerExtractTitleWithoutLLMFallbackBehavesLikeExtractCleanTitle(t *testing.T) {
	r := &Runner{}
	got := r.extractTitle(context.Background(), "Task", "e001_s02_t03", "[object Object]")
	if got != "Task 03 (Sprint 02)" {
		t.Errorf("extractTitle() = %q, want id-derived fallback (no llm client configured)", got)
	}
}

func TestRunnerExtractTitlePrefersRegexOverLLM(t *testing.T) {
	r := &Runner{}
	got := r.extractTitle(context.Background(), "Task", "e001_s02_t03", `function() { return "Retry failed uploads"; }`)
	if got != "Retry failed uploads" {
		t.Errorf("extractTitle() = %q, want quoted substring (regex tier short-circuits LLM)", got)
	}
}

func TestFallbackTitleSprintAndEpic(t *testing.T) {
	if got := fallbackTitle("Sprint", "e001_s02"); got != "Sprint 02 (Epic 001)" {
		t.Errorf("fallbackTitle(Sprint) = %q", got)
	}
	if got := fallbackTitle("Epic", "e001"); got != "Epic 001" {
		t.Errorf("fallbackTitle(Epic) = %q", got)
	}
	if got := fallbackTitle("Epic", "adhoc-weird-id"); got != "Epic adhoc-weird-id" {
		t.Errorf("fallbackTitle(unrecognized id) = %q, want generic fallback", got)
	}
}
