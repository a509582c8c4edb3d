package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/akrambak/aegis-planner/internal/audit"
)

func TestRecordExecutionCountsOutcomes(t *testing.T) {
	m := NewRuntimeMetrics(t.TempDir())

	cases := []audit.Record{
		{Status: audit.StatusSuccess, ElapsedMS: 120},
		{Status: audit.StatusFailed, ElapsedMS: 40, Error: "exit status 1"},
		{Status: audit.StatusBlocked},
		{Status: audit.StatusSkipped},
	}
	for _, rec := range cases {
		if _, err := m.RecordExecution(rec, nil); err != nil {
			t.Fatalf("RecordExecution: %v", err)
		}
	}

	snap := m.Snapshot()
	if snap.Dispatch.Total != 4 {
		t.Errorf("expected total 4, got %d", snap.Dispatch.Total)
	}
	if snap.Dispatch.Succeeded != 1 || snap.Dispatch.Failed != 1 ||
		snap.Dispatch.Blocked != 1 || snap.Dispatch.Skipped != 1 {
		t.Errorf("unexpected outcome counts: %+v", snap.Dispatch)
	}
	if snap.Dispatch.MaxLatencyMs != 120 {
		t.Errorf("expected max latency 120, got %d", snap.Dispatch.MaxLatencyMs)
	}
	if !snap.HasData() {
		t.Error("expected snapshot to report data")
	}
}

func TestRecordExecutionTimeout(t *testing.T) {
	m := NewRuntimeMetrics(t.TempDir())

	rec := audit.Record{Status: audit.StatusFailed, ElapsedMS: 60000}
	if _, err := m.RecordExecution(rec, context.DeadlineExceeded); err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}

	snap := m.Snapshot()
	if snap.Dispatch.Timeouts != 1 {
		t.Errorf("expected one timeout, got %d", snap.Dispatch.Timeouts)
	}
}

func TestRecordAlertSend(t *testing.T) {
	m := NewRuntimeMetrics(t.TempDir())

	if _, err := m.RecordAlertSend(true); err != nil {
		t.Fatalf("RecordAlertSend: %v", err)
	}
	if _, err := m.RecordAlertSend(false); err != nil {
		t.Fatalf("RecordAlertSend: %v", err)
	}

	snap := m.Snapshot()
	if snap.Alert.SendAttempts != 2 || snap.Alert.SendFailures != 1 {
		t.Errorf("unexpected alert stats: %+v", snap.Alert)
	}
	if got := snap.Alert.FailureRatio(); got != 0.5 {
		t.Errorf("expected failure ratio 0.5, got %v", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewRuntimeMetrics(dir)

	rec := audit.Record{Status: audit.StatusSuccess, ElapsedMS: 15}
	if _, err := m.RecordExecution(rec, nil); err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}

	snap, err := ReadRuntimeSnapshot(dir)
	if err != nil {
		t.Fatalf("ReadRuntimeSnapshot: %v", err)
	}
	if snap.Dispatch.Total != 1 || snap.Dispatch.Succeeded != 1 {
		t.Errorf("unexpected persisted snapshot: %+v", snap.Dispatch)
	}
	if snap.UpdatedAt.IsZero() || time.Since(snap.UpdatedAt) > time.Minute {
		t.Errorf("unexpected updated_at: %v", snap.UpdatedAt)
	}
}

func TestReadMissingSnapshot(t *testing.T) {
	snap, err := ReadRuntimeSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("ReadRuntimeSnapshot: %v", err)
	}
	if snap.HasData() {
		t.Error("expected empty snapshot for missing file")
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *RuntimeMetrics
	if _, err := m.RecordExecution(audit.Record{}, nil); err != nil {
		t.Fatalf("nil RecordExecution: %v", err)
	}
	if _, err := m.RecordAlertSend(true); err != nil {
		t.Fatalf("nil RecordAlertSend: %v", err)
	}
	if m.Snapshot().HasData() {
		t.Error("expected empty snapshot from nil receiver")
	}
}
