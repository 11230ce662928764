package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistryRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	if m == nil {
		t.Fatal("expected a Metrics instance, got nil")
	}
	if m.RequestsTotal == nil || m.RequestDuration == nil {
		t.Error("HTTP collectors should not be nil")
	}
	if m.DLQDepth == nil || m.DLQRetries == nil || m.DLQAbandoned == nil {
		t.Error("DLQ collectors should not be nil")
	}
	if m.EventStreamLagSeconds == nil || m.EventsEmittedTotal == nil {
		t.Error("event stream collectors should not be nil")
	}
}

func TestRecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.RecordRequest("GET", "/api/v1/task/:id/verify", "200", 10*time.Millisecond)
	m.RecordRequest("POST", "/api/v1/task/:id/override", "403", 2*time.Millisecond)
}

func TestDLQGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.SetDLQDepth("pending", 3)
	m.RecordDLQRetry("resolved")
	m.RecordDLQRetry("abandoned")
	m.RecordDLQAbandoned("tenant-1")
}

func TestEventAndSynthesisRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", reg)

	m.SetEventStreamLag(500 * time.Millisecond)
	m.RecordEventEmitted("task.updated")
	m.RecordSynthesis("success", 120*time.Millisecond)
	m.RecordSearch("success", 8*time.Millisecond)
	m.RecordEmbeddingCache(true)
	m.RecordEmbeddingCache(false)
}
