package migrate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/graphkg/service/internal/dedup"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/tenant"
)

// malformed-title patterns (spec.md §4.9 step 2): artifacts of a buggy
// upstream serializer that occasionally wrote a JS expression, a raw
// object dump, or an HTTP request line into a title field instead of
// text.
var (
	reStringPrefix  = regexp.MustCompile(`(?i)^string[\[\{;, ]`)
	reBracesOnly    = regexp.MustCompile(`^[\{\}\[\]\s]+$`)
	reObjectDump    = regexp.MustCompile(`(?i)^\[object`)
	reFunctionDecl  = regexp.MustCompile(`(?i)^function\s*\(`)
	reJSCommentQuot = regexp.MustCompile(`//.*["'].*["']`)
	reHTTPVerbPath  = regexp.MustCompile(`(?i)^(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\s+/`)
)

func isMalformedTitle(title string) bool {
	t := strings.TrimSpace(title)
	if t == "" {
		return false
	}
	if t == "undefined" || t == "null" {
		return true
	}
	return reStringPrefix.MatchString(t) ||
		reBracesOnly.MatchString(t) ||
		reObjectDump.MatchString(t) ||
		reFunctionDecl.MatchString(t) ||
		reJSCommentQuot.MatchString(t) ||
		reHTTPVerbPath.MatchString(t)
}

var (
	reQuoted  = regexp.MustCompile(`["']([^"']{2,})["']`)
	reComment = regexp.MustCompile(`//\s*(.+)$`)

	fallbackTaskIDPattern   = regexp.MustCompile(`^e(\d+)_s(\d+)_t(\d+)$`)
	fallbackSprintIDPattern = regexp.MustCompile(`^e(\d+)_s(\d+)$`)
	fallbackEpicIDPattern   = regexp.MustCompile(`^e(\d+)$`)
)

// extractCleanTitle implements spec.md §4.9 step 3: try a quoted
// substring, then a trailing `// ...` comment, then fall back to a title
// synthesized from the node's own id pattern. See extractTitle for the
// LLM-assisted variant the Runner uses when both regex tiers miss.
func extractCleanTitle(label, id, malformed string) string {
	if title, ok := regexExtractTitle(malformed); ok {
		return title
	}
	return fallbackTitle(label, id)
}

func regexExtractTitle(malformed string) (string, bool) {
	if m := reQuoted.FindStringSubmatch(malformed); m != nil {
		return m[1], true
	}
	if m := reComment.FindStringSubmatch(malformed); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// titleExtractionSystemPrompt is the instruction given to the optional
// LLM fallback: recover the human-intended title from a malformed
// string, or say so plainly.
const titleExtractionSystemPrompt = `You recover a short, human-readable title from a corrupted string that was meant to be one. Respond with ONLY the recovered title, no punctuation or quotes around it, no explanation. If you cannot recover anything meaningful, respond with exactly: UNRECOVERABLE`

// extractTitle is extractCleanTitle's LLM-assisted superset: the same
// two regex tiers, then (only when a fallback client is configured and
// enabled) one completion call, before finally synthesizing a title
// from the node's id. The LLM tier is best-effort — any error or an
// UNRECOVERABLE response falls straight through to fallbackTitle.
func (r *Runner) extractTitle(ctx context.Context, label, id, malformed string) string {
	if title, ok := regexExtractTitle(malformed); ok {
		return title
	}
	if r.llmFallback != nil && r.llmFallback.IsEnabled() {
		if title, ok := r.extractTitleViaLLM(ctx, malformed); ok {
			return title
		}
	}
	return fallbackTitle(label, id)
}

func (r *Runner) extractTitleViaLLM(ctx context.Context, malformed string) (string, bool) {
	response, err := r.llmFallback.Complete(ctx, titleExtractionSystemPrompt, malformed)
	if err != nil {
		logging.Warn("llm title-extraction fallback failed", "error", err)
		return "", false
	}
	title := strings.TrimSpace(response)
	if title == "" || title == "UNRECOVERABLE" {
		return "", false
	}
	return title, true
}

func fallbackTitle(label, id string) string {
	switch label {
	case "Task":
		if m := fallbackTaskIDPattern.FindStringSubmatch(id); m != nil {
			return fmt.Sprintf("Task %s (Sprint %s)", m[3], m[2])
		}
	case "Sprint":
		if m := fallbackSprintIDPattern.FindStringSubmatch(id); m != nil {
			return fmt.Sprintf("Sprint %s (Epic %s)", m[2], m[1])
		}
	case "Epic":
		if m := fallbackEpicIDPattern.FindStringSubmatch(id); m != nil {
			return fmt.Sprintf("Epic %s", m[1])
		}
	}
	return fmt.Sprintf("%s %s", label, id)
}

// CleanupInput is the C9 cleanup request of spec.md §4.9.
type CleanupInput struct {
	DryRun            bool
	IncludeDuplicates bool
	ConfirmationToken string
}

// CleanupReport summarizes what a cleanup pass did or would do.
type CleanupReport struct {
	Scanned           int
	MalformedFound    int
	Retitled          int
	Errors            int
	DuplicateGroups   int
	DuplicatesMerged  int
}

// RunCleanup scans Sprint/Task/Epic for malformed titles, retitles them
// (title and name only — relationships are never touched), and, if
// requested, hands duplicate detection/merge off to C4. Apply-mode
// (non-dry-run) requires a non-empty confirmation token; dry-run never
// does (spec.md §4.9, last paragraph).
func (r *Runner) RunCleanup(ctx context.Context, tenantID string, in CleanupInput) (CleanupReport, error) {
	if !in.DryRun && in.ConfirmationToken == "" {
		return CleanupReport{}, graphkgerrors.Validation("apply-mode cleanup requires a confirmation token")
	}

	var report CleanupReport
	for _, label := range []string{"Epic", "Sprint", "Task"} {
		if err := r.cleanupLabel(ctx, tenantID, label, in, &report); err != nil {
			return report, err
		}
	}

	if in.IncludeDuplicates {
		recon := dedup.New(r.gw)
		archiveDate := time.Now().Format("20060102")
		for _, label := range []string{"Epic", "Sprint"} {
			groups, err := recon.FindDuplicates(ctx, tenantID, label)
			if err != nil {
				return report, err
			}
			report.DuplicateGroups += len(groups)
			for _, g := range groups {
				mergeReport := recon.Merge(ctx, tenantID, g, in.DryRun, archiveDate)
				if mergeReport.Err == nil {
					report.DuplicatesMerged += len(mergeReport.ArchivedLosers)
				} else {
					report.Errors++
				}
			}
		}
	}

	return report, nil
}

func (r *Runner) cleanupLabel(ctx context.Context, tenantID, label string, in CleanupInput, report *CleanupReport) error {
	query := fmt.Sprintf(`
MATCH (n:%s) WHERE %s
RETURN n.id AS id, n.title AS title`, label, tenant.ScopeClause("n", "tenant"))

	rows, err := r.gw.Execute(ctx, query, map[string]any{"tenant": tenantID})
	if err != nil {
		return err
	}

	for _, row := range rows {
		report.Scanned++
		id := graph.NormalizeString(row["id"])
		title := graph.NormalizeString(row["title"])
		if !isMalformedTitle(title) {
			continue
		}
		report.MalformedFound++

		clean := r.extractTitle(ctx, label, id, title)
		if in.DryRun {
			report.Retitled++
			continue
		}
		if err := r.retitle(ctx, label, tenantID, id, clean); err != nil {
			logging.Warn("cleanup retitle failed", "label", label, "id", id, "error", err)
			report.Errors++
			continue
		}
		report.Retitled++
	}
	return nil
}

// retitle updates only title and name (spec.md §4.9 step 4: "never touch
// relationships") — n.name is kept in lockstep with n.title for labels
// that carry both (Epic/Sprint/Task all key off id, not name, but some
// archived rows still carry a name property from an older schema).
func (r *Runner) retitle(ctx context.Context, label, tenantID, id, title string) error {
	safeLabel := label
	if !isValidLabel(safeLabel) {
		return graphkgerrors.Internal(nil, "invalid node label %q", label)
	}
	query := fmt.Sprintf(`
MATCH (n:%s {id: $id}) WHERE %s
SET n.title = $title, n.name = $title, n.updatedAt = datetime()
RETURN n`, safeLabel, tenant.ScopeClause("n", "tenant"))

	_, err := r.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		return graph.RunAndCollect(ctx, tx, query, map[string]any{"id": id, "tenant": tenantID, "title": title})
	})
	return err
}
