// Package sweep expires overdue approval tickets on a cron schedule so
// that abandoned requests do not stay PENDING forever.
package sweep

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/akrambak/aegis-planner/internal/approval"
)

// Expirer is the slice of the approval service the sweeper drives.
type Expirer interface {
	ExpireOverdue() ([]approval.Ticket, error)
}

// Sweeper runs Expirer on a cron schedule with a ticker-based polling loop.
type Sweeper struct {
	expirer  Expirer
	schedule string

	mu       sync.Mutex
	nextRun  time.Time
	stopChan chan struct{}
	stopped  chan struct{}
	running  bool

	now func() time.Time
}

// New creates a sweeper for the given cron expression.
func New(expirer Expirer, schedule string) (*Sweeper, error) {
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("invalid sweep schedule: %q", schedule)
	}
	return &Sweeper{
		expirer:  expirer,
		schedule: schedule,
		now:      time.Now,
	}, nil
}

// Start begins the polling loop.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	next, err := gronx.NextTickAfter(s.schedule, s.now(), false)
	if err != nil {
		return fmt.Errorf("sweep start: %w", err)
	}
	s.nextRun = next
	s.stopChan = make(chan struct{})
	s.stopped = make(chan struct{})
	s.running = true

	go s.loop()

	slog.Info("sweep started", "schedule", s.schedule, "next_run", next.Format(time.RFC3339))
	return nil
}

// Stop gracefully shuts down the polling loop.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	<-s.stopped
	slog.Info("sweep stopped")
}

func (s *Sweeper) loop() {
	defer close(s.stopped)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sweeper) tick() {
	s.mu.Lock()
	due := !s.now().Before(s.nextRun)
	if due {
		next, err := gronx.NextTickAfter(s.schedule, s.now(), false)
		if err != nil {
			slog.Warn("sweep: failed to compute next run", "expr", s.schedule, "error", err)
			s.mu.Unlock()
			return
		}
		s.nextRun = next
	}
	s.mu.Unlock()

	if due {
		s.Sweep()
	}
}

// Sweep runs one expiry pass immediately. Safe to call outside the loop.
func (s *Sweeper) Sweep() {
	expired, err := s.expirer.ExpireOverdue()
	if err != nil {
		slog.Error("sweep: expiry pass failed", "error", err)
		return
	}
	for _, t := range expired {
		slog.Info("sweep: ticket expired", "ticket_id", t.ID, "task", t.TaskText)
	}
}

// Status returns a summary of the sweeper.
func (s *Sweeper) Status() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]any{
		"running":  s.running,
		"schedule": s.schedule,
	}
	if s.running {
		status["next_run"] = s.nextRun.Format(time.RFC3339)
	}
	return status
}
