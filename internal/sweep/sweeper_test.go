package sweep

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akrambak/aegis-planner/internal/approval"
)

type fakeExpirer struct {
	mu      sync.Mutex
	calls   int
	expired []approval.Ticket
	err     error
}

func (f *fakeExpirer) ExpireOverdue() ([]approval.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.expired, f.err
}

func (f *fakeExpirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	if _, err := New(&fakeExpirer{}, "not a cron"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSweepRunsExpirer(t *testing.T) {
	exp := &fakeExpirer{expired: []approval.Ticket{{ID: "t-1"}}}
	s, err := New(exp, "* * * * *")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Sweep()
	if exp.callCount() != 1 {
		t.Errorf("expected one expiry pass, got %d", exp.callCount())
	}
}

func TestSweepSurvivesExpirerError(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("store offline")}
	s, err := New(exp, "* * * * *")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Sweep()
	if exp.callCount() != 1 {
		t.Errorf("expected expirer to be called, got %d", exp.callCount())
	}
}

func TestTickFiresWhenDue(t *testing.T) {
	exp := &fakeExpirer{}
	s, err := New(exp, "* * * * *")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.nextRun = base.Add(-time.Second)

	s.tick()
	if exp.callCount() != 1 {
		t.Fatalf("expected a sweep on due tick, got %d", exp.callCount())
	}
	if !s.nextRun.After(base) {
		t.Errorf("expected next run after %v, got %v", base, s.nextRun)
	}

	// Not due again until the schedule fires.
	s.tick()
	if exp.callCount() != 1 {
		t.Errorf("expected no sweep before next run, got %d calls", exp.callCount())
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(&fakeExpirer{}, "* * * * *")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := s.Status()
	if st["running"] != true {
		t.Error("expected running status")
	}
	s.Stop()
	st = s.Status()
	if st["running"] != false {
		t.Error("expected stopped status")
	}
	// Stop is idempotent.
	s.Stop()
}
