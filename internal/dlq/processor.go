package dlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/graphkg/service/internal/config"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/models"
)

// EventApplier re-applies a dead-lettered event to the graph. Satisfied by
// (*repository.Repository).AppendEvent, whose MERGE-on-id write is what
// makes retry-apply idempotent (spec.md §4.8 "Idempotence").
type EventApplier interface {
	AppendEvent(ctx context.Context, tenantID string, event *models.Event) error
}

// Processor runs the pending → retrying → {resolved | pending | abandoned}
// state machine over entries in Store, grounded on the teacher's
// internal/dlq/queue.go retry-gating idiom but driven by a fixed escalating
// delay table instead of a flat retry_count < max check.
type Processor struct {
	store   *Store
	applier EventApplier
	cfg     config.DLQConfig
}

func NewProcessor(store *Store, applier EventApplier, cfg config.DLQConfig) *Processor {
	return &Processor{store: store, applier: applier, cfg: cfg}
}

// Enqueue dead-letters an event that failed to write to the graph.
func (p *Processor) Enqueue(ctx context.Context, tenantID string, event *models.Event, failureReason string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return graphkgerrors.Internal(err, "failed to serialize event %q for dead-lettering", event.ID)
	}
	return p.store.Enqueue(ctx, &models.DeadLetterEntry{
		ID:            event.ID,
		GraphID:       tenantID,
		OriginalEvent: string(payload),
		FailureReason: failureReason,
		FailedAt:      time.Now(),
	})
}

// retryDelay returns the delay required before retry attempt k may run,
// per the fixed escalating table {60s, 5m, 30m} of spec.md §4.8: the
// delay at attempt k is table[min(k, len-1)].
func (p *Processor) retryDelay(attempt int) time.Duration {
	ladder := p.cfg.RetryLadder
	if len(ladder) == 0 {
		ladder = []time.Duration{60 * time.Second, 5 * time.Minute, 30 * time.Minute}
	}
	idx := attempt
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	return ladder[idx]
}

// Retry attempts to re-apply one dead-lettered event. It returns a
// TooEarly error carrying the remaining wait (in the Context bag, key
// "remainingSeconds") if the retry-after delay for this entry's
// retry_count has not yet elapsed.
func (p *Processor) Retry(ctx context.Context, tenantID, id string) error {
	entry, err := p.store.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if entry.Status == models.DLQResolved || entry.Status == models.DLQAbandoned {
		return graphkgerrors.Conflict("dead-letter entry %q is already %s", id, entry.Status)
	}

	if entry.LastRetryAt != nil {
		delay := p.retryDelay(entry.RetryCount)
		elapsed := time.Since(*entry.LastRetryAt)
		if elapsed < delay {
			remaining := delay - elapsed
			return graphkgerrors.TooEarly("dead-letter entry %q not eligible for retry for another %s", id, remaining.Round(time.Second)).
				WithContext("remainingSeconds", int(remaining.Seconds()))
		}
	}

	now := time.Now()
	if err := p.store.MarkRetrying(ctx, id, now); err != nil {
		// Store failure during the retry update itself: a service error,
		// not an event-application failure, so retry_count is untouched.
		return err
	}

	var event models.Event
	if err := json.Unmarshal([]byte(entry.OriginalEvent), &event); err != nil {
		return p.fail(ctx, entry, "failed to deserialize original_event: "+err.Error())
	}

	applyErr := p.applier.AppendEvent(ctx, tenantID, &event)
	if applyErr == nil {
		if err := p.store.MarkResolved(ctx, id); err != nil {
			return err
		}
		logging.Info("dead-letter entry resolved", "id", id, "tenant", tenantID)
		return nil
	}

	if graphkgerrors.GetKind(applyErr) == graphkgerrors.KindServiceUnavailable {
		// The graph store itself is down again — this is not a failure of
		// this particular event, so it must not count against retry_count.
		return applyErr
	}

	return p.fail(ctx, entry, applyErr.Error())
}

// fail increments retry_count and appends to the failure-reason audit
// trail, abandoning the entry once maxRetries is reached.
func (p *Processor) fail(ctx context.Context, entry *models.DeadLetterEntry, reason string) error {
	maxRetries := p.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	nextCount := entry.RetryCount + 1
	abandoned := nextCount >= maxRetries

	if err := p.store.RecordFailure(ctx, entry.ID, reason, abandoned); err != nil {
		return err
	}

	if abandoned {
		logging.Warn("dead-letter entry abandoned", "id", entry.ID, "retryCount", nextCount, "reason", reason)
		return graphkgerrors.Internal(nil, "dead-letter entry %q abandoned after %d retries: %s", entry.ID, nextCount, reason)
	}

	logging.Warn("dead-letter retry failed, will retry later", "id", entry.ID, "retryCount", nextCount, "reason", reason)
	return graphkgerrors.Internal(nil, "dead-letter entry %q retry %d failed: %s", entry.ID, nextCount, reason).WithContext("retryable", true)
}

// ListPending is a thin passthrough used by the migration/admin surface to
// enumerate entries awaiting retry for a tenant.
func (p *Processor) ListPending(ctx context.Context, tenantID string, limit int) ([]models.DeadLetterEntry, error) {
	return p.store.ListPending(ctx, tenantID, limit)
}
