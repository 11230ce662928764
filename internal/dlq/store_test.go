package dlq

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/graphkg/service/internal/models"
)

func TestEnqueueInsertsEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO dead_letter_queue").
		WithArgs("ev1", "tenant1", "{}", "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := &Store{db: db}
	err = store.Enqueue(context.Background(), &models.DeadLetterEntry{
		ID: "ev1", GraphID: "tenant1", OriginalEvent: "{}", FailureReason: "boom", FailedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReturnsNotFoundWhenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, graph_id").
		WithArgs("missing", "tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "graph_id", "original_event", "failure_reason", "failed_at", "retry_count", "last_retry_at", "status"}))

	store := &Store{db: db}
	_, err = store.Get(context.Background(), "tenant1", "missing")
	if err == nil {
		t.Fatal("expected a NotFound error")
	}
}

func TestRecordFailureMarksAbandoned(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE dead_letter_queue").
		WithArgs("ev1", "still failing", "abandoned").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := &Store{db: db}
	if err := store.RecordFailure(context.Background(), "ev1", "still failing", true); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
