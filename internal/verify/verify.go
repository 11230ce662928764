// Package verify implements Verification & Override (C10, spec.md §4.10):
// persisting task verification runs and gating the human-only override
// that marks a task complete despite failing or skipped criteria.
//
// Grounded on the teacher's internal/repository write template
// (upsertNode's MERGE-on-id shape, generalized here to two new labels)
// and on repository.go's CreateRelationship for the typed edges this
// component adds (VERIFIED_BY, OVERRIDDEN_BY, PERFORMED_OVERRIDE).
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/models"
	"github.com/graphkg/service/internal/repository"
	"github.com/graphkg/service/internal/tenant"
)

// Verifier is the C10 Verification & Override component.
type Verifier struct {
	gw   *graph.Gateway
	repo *repository.Repository
}

func New(gw *graph.Gateway, repo *repository.Repository) *Verifier {
	return &Verifier{gw: gw, repo: repo}
}

// VerifyInput is a computed-or-received set of criterion outcomes for one
// task (spec.md §4.10 "Verify").
type VerifyInput struct {
	TaskID   string
	Criteria []models.CriterionOutcome
}

// Verify persists a VerificationResult and links it to the task via
// VERIFIED_BY, without mutating the task itself — only Override changes
// task state.
func (v *Verifier) Verify(ctx context.Context, tenantID string, in VerifyInput) (*models.VerificationResult, error) {
	if in.TaskID == "" {
		return nil, graphkgerrors.Validation("task id is required")
	}
	if len(in.Criteria) == 0 {
		return nil, graphkgerrors.Validation("at least one criterion is required")
	}

	if _, err := v.repo.RequireNode(ctx, tenantID, "Task", in.TaskID); err != nil {
		return nil, err
	}

	result := &models.VerificationResult{
		ID:        fmt.Sprintf("%s_verify_%s", in.TaskID, uuid.NewString()),
		TaskID:    in.TaskID,
		Timestamp: time.Now(),
		Criteria:  in.Criteria,
	}
	result.CriteriaTotal = len(in.Criteria)
	result.Passed = true
	for _, c := range in.Criteria {
		if c.Passed {
			result.CriteriaPassed++
		} else {
			result.Passed = false
		}
	}
	if result.Passed {
		result.Summary = fmt.Sprintf("%d/%d criteria passed", result.CriteriaPassed, result.CriteriaTotal)
	} else {
		result.Summary = fmt.Sprintf("%d/%d criteria passed — verification failed", result.CriteriaPassed, result.CriteriaTotal)
	}

	if err := v.persistVerificationResult(ctx, tenantID, result); err != nil {
		return nil, err
	}

	if _, err := v.repo.CreateRelationship(ctx, tenantID, "Task", in.TaskID, "VerificationResult", result.ID, models.RelVerifiedBy, nil); err != nil {
		return nil, err
	}

	return result, nil
}

func (v *Verifier) persistVerificationResult(ctx context.Context, tenantID string, result *models.VerificationResult) error {
	criteria := make([]any, len(result.Criteria))
	for i, c := range result.Criteria {
		criteria[i] = map[string]any{
			"id": c.ID, "description": c.Description, "passed": c.Passed,
			"details": c.Details, "durationMs": c.DurationMS,
		}
	}

	_, err := v.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		return graph.RunAndCollect(ctx, tx, `
MERGE (v:VerificationResult {id: $id})
ON CREATE SET
  v.graph_id = $tenant,
  v.graphId = $tenant,
  v.task_id = $taskId,
  v.passed = $passed,
  v.timestamp = $timestamp,
  v.criteria_passed = $criteriaPassed,
  v.criteria_total = $criteriaTotal,
  v.summary = $summary,
  v.criteria = $criteria
RETURN v`, map[string]any{
			"id":             result.ID,
			"tenant":         tenantID,
			"taskId":         result.TaskID,
			"passed":         result.Passed,
			"timestamp":      result.Timestamp.Format(time.RFC3339),
			"criteriaPassed": result.CriteriaPassed,
			"criteriaTotal":  result.CriteriaTotal,
			"summary":        result.Summary,
			"criteria":       criteria,
		})
	})
	return err
}

// OverrideInput is the C10 "Override" request (spec.md §4.10).
type OverrideInput struct {
	TaskID    string
	Reason    string
	Principal models.Principal
}

// Override applies the human-only quality override. Per spec.md's
// authorization gate, a principal of kind Agent is always rejected with
// Forbidden, before any graph access — agents cannot override their own
// verification.
func (v *Verifier) Override(ctx context.Context, tenantID string, in OverrideInput) (*models.QualityOverride, error) {
	if in.TaskID == "" {
		return nil, graphkgerrors.Validation("task id is required")
	}
	if in.Reason == "" {
		return nil, graphkgerrors.Validation("override reason is required")
	}
	if in.Principal.Kind != models.PrincipalUser {
		return nil, graphkgerrors.Forbidden("only human users can override verification; principal %q is kind %q", in.Principal.ID, in.Principal.Kind)
	}

	if _, err := v.repo.RequireNode(ctx, tenantID, "Task", in.TaskID); err != nil {
		return nil, err
	}

	override := &models.QualityOverride{
		ID:        fmt.Sprintf("%s_override_%s", in.TaskID, uuid.NewString()),
		TaskID:    in.TaskID,
		UserID:    in.Principal.ID,
		Reason:    in.Reason,
		Timestamp: time.Now(),
		GraphID:   tenantID,
	}

	// The override record is written and its edges created before the
	// task status mutation: per spec.md §7 "Audit semantics", if the
	// status mutation below fails, the override record must still exist
	// and be visible to operators — the audit trail is never rolled back.
	if err := v.persistOverride(ctx, tenantID, override); err != nil {
		return nil, err
	}
	if _, err := v.repo.CreateRelationship(ctx, tenantID, "Task", in.TaskID, "QualityOverride", override.ID, models.RelOverriddenBy, nil); err != nil {
		return override, err
	}
	if _, err := v.repo.CreateRelationship(ctx, tenantID, "User", in.Principal.ID, "QualityOverride", override.ID, models.RelPerformedOverride, nil); err != nil {
		return override, err
	}

	if err := v.completeTask(ctx, tenantID, in.TaskID, override.Timestamp); err != nil {
		// The override record above already persisted and is linked to the
		// task; this failure is logged so the discrepancy is visible to
		// operators rather than silently lost (spec.md §7 "Audit semantics").
		logging.Error("override persisted but task status mutation failed", "taskId", in.TaskID, "overrideId", override.ID, "error", err)
		return override, err
	}

	return override, nil
}

func (v *Verifier) persistOverride(ctx context.Context, tenantID string, override *models.QualityOverride) error {
	_, err := v.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		return graph.RunAndCollect(ctx, tx, `
CREATE (o:QualityOverride {
  id: $id,
  graph_id: $tenant,
  graphId: $tenant,
  task_id: $taskId,
  user_id: $userId,
  reason: $reason,
  timestamp: $timestamp
})
RETURN o`, map[string]any{
			"id": override.ID, "tenant": tenantID, "taskId": override.TaskID,
			"userId": override.UserID, "reason": override.Reason,
			"timestamp": override.Timestamp.Format(time.RFC3339),
		})
	})
	return err
}

// completeTask applies the three Task mutations spec.md §4.10 "Override"
// requires on success: status=complete, completed_at=now, and
// quality_override=true.
func (v *Verifier) completeTask(ctx context.Context, tenantID, taskID string, at time.Time) error {
	_, err := v.gw.WithWriteTx(ctx, func(tx graph.Runner) (any, error) {
		return graph.RunAndCollect(ctx, tx, fmt.Sprintf(`
MATCH (t:Task {id: $taskId}) WHERE %s
SET t.status = 'complete', t.completed_at = $completedAt, t.quality_override = true, t.updatedAt = datetime()
RETURN t`, tenant.ScopeClause("t", "tenant")), map[string]any{
			"taskId": taskID, "tenant": tenantID, "completedAt": at.Format(time.RFC3339),
		})
	})
	return err
}
