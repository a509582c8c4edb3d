// Package approval manages the pending-ticket lifecycle and the one place
// the control plane legitimately suspends: waiting for a human decision.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akrambak/aegis-planner/internal/risk"
)

const (
	defaultTimeout      = time.Hour
	defaultPollInterval = 2 * time.Second
)

// Config controls wait behavior. Both knobs are deployment configuration,
// not constants.
type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Request describes a task needing human authorization.
type Request struct {
	TaskKey   string
	TaskText  string
	RiskTier  risk.Tier
	Reason    string
	Requester string
}

// Service creates tickets, notifies the reviewer channel and suspends
// callers until resolution or timeout. Waits are cooperative polls against
// the injected store, so one slow approval never stalls other submissions.
type Service struct {
	store    Store
	notifier Notifier
	cfg      Config
	now      func() time.Time

	// createMu serializes the pending-duplicate check with the append so
	// concurrent submissions of the same task cannot both pass the check.
	createMu sync.Mutex
}

// NewService builds an approval service over an injected ticket store.
// notifier may be nil when no reviewer channel is configured.
func NewService(store Store, notifier Notifier, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RequestApproval creates a pending ticket, notifies the reviewer and
// blocks until an outcome. At most one ticket may be pending per task key;
// a duplicate submission is rejected with ErrDuplicatePending.
func (s *Service) RequestApproval(ctx context.Context, req Request) (Outcome, Ticket, error) {
	ticket, err := s.Create(req)
	if err != nil {
		return OutcomeDenied, Ticket{}, err
	}

	s.notify(ctx, ticket)

	outcome, resolved, err := s.Await(ctx, ticket.ID)
	if err != nil {
		return outcome, ticket, err
	}
	return outcome, resolved, nil
}

// Create persists a new pending ticket without waiting on it. At most one
// ticket may be pending per task key at any instant.
func (s *Service) Create(req Request) (Ticket, error) {
	text := strings.TrimSpace(req.TaskText)
	if text == "" {
		return Ticket{}, fmt.Errorf("task text is required")
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	pending, err := s.store.PendingTickets()
	if err != nil {
		return Ticket{}, fmt.Errorf("list pending tickets: %w", err)
	}
	for _, p := range pending {
		if p.TaskKey != "" && p.TaskKey == req.TaskKey {
			return Ticket{}, fmt.Errorf("%w: ticket %s", ErrDuplicatePending, p.ID)
		}
	}

	now := s.now().UTC()
	ticket := Ticket{
		ID:        uuid.NewString(),
		TaskKey:   req.TaskKey,
		TaskText:  text,
		RiskTier:  req.RiskTier,
		Reason:    strings.TrimSpace(req.Reason),
		Requester: strings.TrimSpace(req.Requester),
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Timeout),
	}

	if err := s.store.AppendTicket(ticket); err != nil {
		return Ticket{}, fmt.Errorf("persist ticket: %w", err)
	}
	return ticket, nil
}

// Await polls the store until the ticket reaches a terminal state, its
// persisted deadline elapses, or ctx is cancelled. The deadline is the
// ticket's ExpiresAt, so the waiter and the sweeper agree on expiry no
// matter how long notification took. On timeout the ticket is expired via
// the conditional update; if a resolver won that race the resolved state is
// honored instead.
func (s *Service) Await(ctx context.Context, ticketID string) (Outcome, Ticket, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ticket, err := s.store.Ticket(ticketID)
		if err != nil {
			return OutcomeDenied, Ticket{}, err
		}
		if ticket.Status.Terminal() {
			return outcomeFor(ticket.Status), ticket, nil
		}

		deadline := ticket.ExpiresAt
		if deadline.IsZero() {
			deadline = ticket.CreatedAt.Add(s.cfg.Timeout)
		}
		if !s.now().Before(deadline) {
			return s.expire(ticketID)
		}

		select {
		case <-ctx.Done():
			// Shutdown abandons the wait; the ticket stays PENDING and
			// remains resumable by a later polling cycle or the sweeper.
			return OutcomeTimedOut, ticket, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Resolve applies an inbound reviewer decision. Idempotent: a ticket
// already terminal is left untouched and applied is false.
func (s *Service) Resolve(res Resolution) (Ticket, bool, error) {
	status := StatusDenied
	if res.Approved {
		status = StatusApproved
	}
	decidedBy := strings.TrimSpace(res.ResolvedBy)
	if decidedBy == "" {
		decidedBy = "unknown"
	}
	return s.store.ResolveTicket(res.TicketID, status, decidedBy)
}

// ExpireOverdue expires every pending ticket whose deadline has passed.
// Run by the sweeper so tickets orphaned by a restart still terminate.
func (s *Service) ExpireOverdue() ([]Ticket, error) {
	pending, err := s.store.PendingTickets()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var expired []Ticket
	for _, ticket := range pending {
		if ticket.ExpiresAt.IsZero() || ticket.ExpiresAt.After(now) {
			continue
		}
		updated, applied, err := s.store.ResolveTicket(ticket.ID, StatusExpired, "system")
		if err != nil {
			return expired, err
		}
		if applied {
			expired = append(expired, updated)
		}
	}
	return expired, nil
}

func (s *Service) expire(ticketID string) (Outcome, Ticket, error) {
	ticket, applied, err := s.store.ResolveTicket(ticketID, StatusExpired, "system")
	if err != nil {
		return OutcomeDenied, Ticket{}, err
	}
	if !applied {
		// A resolver beat the timeout; first writer wins.
		return outcomeFor(ticket.Status), ticket, nil
	}
	return OutcomeTimedOut, ticket, nil
}

func (s *Service) notify(ctx context.Context, ticket Ticket) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyApproval(ctx, ticket); err != nil {
		// Delivery failure is logged, not fatal: the ticket stays pending
		// for manual resolution.
		slog.Warn("approval notification failed", "ticket_id", ticket.ID, "error", err)
	}
}

func outcomeFor(status Status) Outcome {
	switch status {
	case StatusApproved:
		return OutcomeApproved
	case StatusExpired:
		return OutcomeTimedOut
	default:
		return OutcomeDenied
	}
}
