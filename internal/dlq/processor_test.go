package dlq

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/graphkg/service/internal/config"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/models"
)

func TestRetryDelayUsesLadderAndClampsAtLast(t *testing.T) {
	p := &Processor{cfg: config.DLQConfig{RetryLadder: []time.Duration{time.Minute, 5 * time.Minute, 30 * time.Minute}}}
	if got := p.retryDelay(0); got != time.Minute {
		t.Errorf("retryDelay(0) = %v, want 1m", got)
	}
	if got := p.retryDelay(2); got != 30*time.Minute {
		t.Errorf("retryDelay(2) = %v, want 30m", got)
	}
	if got := p.retryDelay(10); got != 30*time.Minute {
		t.Errorf("retryDelay(10) = %v, want clamped to 30m", got)
	}
}

func TestRetryDelayFallsBackToDefaultLadder(t *testing.T) {
	p := &Processor{cfg: config.DLQConfig{}}
	if got := p.retryDelay(0); got != 60*time.Second {
		t.Errorf("retryDelay(0) = %v, want default 60s", got)
	}
}

type fakeApplier struct {
	err error
}

func (f *fakeApplier) AppendEvent(ctx context.Context, tenantID string, event *models.Event) error {
	return f.err
}

func TestRetryTooEarlyWhenDelayNotElapsed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	lastRetry := time.Now().Add(-5 * time.Second)
	mock.ExpectQuery("SELECT id, graph_id").
		WithArgs("ev1", "tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "graph_id", "original_event", "failure_reason", "failed_at", "retry_count", "last_retry_at", "status"}).
			AddRow("ev1", "tenant1", "{}", "boom", time.Now(), 0, lastRetry, "pending"))

	store := &Store{db: db}
	p := NewProcessor(store, &fakeApplier{}, config.DLQConfig{RetryLadder: []time.Duration{time.Minute}, MaxRetries: 3})

	err = p.Retry(context.Background(), "tenant1", "ev1")
	if graphkgerrors.GetKind(err) != graphkgerrors.KindTooEarly {
		t.Fatalf("Retry() error kind = %v, want TooEarly", graphkgerrors.GetKind(err))
	}
}

func TestRetrySuccessMarksResolved(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, graph_id").
		WithArgs("ev1", "tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "graph_id", "original_event", "failure_reason", "failed_at", "retry_count", "last_retry_at", "status"}).
			AddRow("ev1", "tenant1", `{"id":"ev1"}`, "boom", time.Now(), 0, nil, "pending"))
	mock.ExpectExec("UPDATE dead_letter_queue SET status = 'retrying'").
		WithArgs("ev1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE dead_letter_queue SET status = 'resolved'").
		WithArgs("ev1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := &Store{db: db}
	p := NewProcessor(store, &fakeApplier{}, config.DLQConfig{RetryLadder: []time.Duration{time.Minute}, MaxRetries: 3})

	if err := p.Retry(context.Background(), "tenant1", "ev1"); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRetryServiceUnavailableDuringMarkRetryingDoesNotIncrementCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, graph_id").
		WithArgs("ev1", "tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "graph_id", "original_event", "failure_reason", "failed_at", "retry_count", "last_retry_at", "status"}).
			AddRow("ev1", "tenant1", `{"id":"ev1"}`, "boom", time.Now(), 0, nil, "pending"))
	mock.ExpectExec("UPDATE dead_letter_queue SET status = 'retrying'").
		WithArgs("ev1", sqlmock.AnyArg()).
		WillReturnError(context.DeadlineExceeded)

	store := &Store{db: db}
	p := NewProcessor(store, &fakeApplier{}, config.DLQConfig{RetryLadder: []time.Duration{time.Minute}, MaxRetries: 3})

	err = p.Retry(context.Background(), "tenant1", "ev1")
	if graphkgerrors.GetKind(err) != graphkgerrors.KindServiceUnavailable {
		t.Fatalf("Retry() error kind = %v, want ServiceUnavailable", graphkgerrors.GetKind(err))
	}
}

func TestRetryFailureAbandonsAtMaxRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, graph_id").
		WithArgs("ev1", "tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "graph_id", "original_event", "failure_reason", "failed_at", "retry_count", "last_retry_at", "status"}).
			AddRow("ev1", "tenant1", `{"id":"ev1"}`, "boom", time.Now(), 2, nil, "pending"))
	mock.ExpectExec("UPDATE dead_letter_queue SET status = 'retrying'").
		WithArgs("ev1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE dead_letter_queue").
		WithArgs("ev1", sqlmock.AnyArg(), "abandoned").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := &Store{db: db}
	p := NewProcessor(store, &fakeApplier{err: graphkgerrors.Internal(nil, "still broken")}, config.DLQConfig{RetryLadder: []time.Duration{time.Minute}, MaxRetries: 3})

	err = p.Retry(context.Background(), "tenant1", "ev1")
	if err == nil {
		t.Fatal("expected an error after abandonment")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
