package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akrambak/aegis-planner/internal/risk"
)

// memStore is an in-memory Store with the same conditional-update contract
// as the audit log.
type memStore struct {
	mu      sync.Mutex
	tickets map[string]Ticket
	order   []string
}

func newMemStore() *memStore {
	return &memStore{tickets: map[string]Ticket{}}
}

func (s *memStore) AppendTicket(t Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
	s.order = append(s.order, t.ID)
	return nil
}

func (s *memStore) Ticket(id string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

func (s *memStore) ResolveTicket(id string, status Status, decidedBy string) (Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, false, ErrNotFound
	}
	if t.Status != StatusPending {
		return t, false, nil
	}
	t.Status = status
	t.DecidedBy = decidedBy
	t.DecidedAt = time.Now().UTC()
	s.tickets[id] = t
	return t, true, nil
}

func (s *memStore) PendingTickets() ([]Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []Ticket
	for _, id := range s.order {
		if t := s.tickets[id]; t.Status == StatusPending {
			pending = append(pending, t)
		}
	}
	return pending, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	tickets []Ticket
	err     error
}

func (n *recordingNotifier) NotifyApproval(_ context.Context, t Ticket) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tickets = append(n.tickets, t)
	return n.err
}

func newTestService(store Store, notifier Notifier) *Service {
	return NewService(store, notifier, Config{
		Timeout:      200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})
}

func TestRequestApprovalApproved(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	done := make(chan struct{})
	var outcome Outcome
	var resolved Ticket
	var reqErr error
	go func() {
		defer close(done)
		outcome, resolved, reqErr = svc.RequestApproval(context.Background(), Request{
			TaskKey:  "k1",
			TaskText: "rm -rf /data",
			RiskTier: risk.TierHigh,
			Reason:   "high risk operation",
		})
	}()

	// Wait for the ticket to appear, then approve it out of band.
	var ticketID string
	for i := 0; i < 100; i++ {
		pending, _ := store.PendingTickets()
		if len(pending) == 1 {
			ticketID = pending[0].ID
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if ticketID == "" {
		t.Fatal("pending ticket never appeared")
	}

	if _, applied, err := svc.Resolve(Resolution{TicketID: ticketID, Approved: true, ResolvedBy: "owner"}); err != nil || !applied {
		t.Fatalf("Resolve applied=%v err=%v", applied, err)
	}

	<-done
	if reqErr != nil {
		t.Fatalf("RequestApproval error: %v", reqErr)
	}
	if outcome != OutcomeApproved {
		t.Fatalf("expected APPROVED, got %s", outcome)
	}
	if resolved.DecidedBy != "owner" {
		t.Fatalf("unexpected decided_by: %q", resolved.DecidedBy)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.tickets) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.tickets))
	}
}

func TestRequestApprovalTimesOut(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	outcome, ticket, err := svc.RequestApproval(context.Background(), Request{
		TaskKey:  "k1",
		TaskText: "sudo reboot",
		RiskTier: risk.TierHigh,
	})
	if err != nil {
		t.Fatalf("RequestApproval error: %v", err)
	}
	if outcome != OutcomeTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", outcome)
	}
	if ticket.Status != StatusExpired {
		t.Fatalf("expected EXPIRED ticket, got %s", ticket.Status)
	}
}

func TestNotificationFailureDoesNotAbortWait(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{err: errors.New("webhook unreachable")}
	svc := newTestService(store, notifier)

	outcome, _, err := svc.RequestApproval(context.Background(), Request{
		TaskKey:  "k1",
		TaskText: "docker restart app",
		RiskTier: risk.TierMedium,
	})
	if err != nil {
		t.Fatalf("RequestApproval error: %v", err)
	}
	// The wait ran to its timeout despite the delivery failure.
	if outcome != OutcomeTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", outcome)
	}
}

func TestDuplicatePendingRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	if _, err := svc.Create(Request{TaskKey: "same", TaskText: "docker ps"}); err != nil {
		t.Fatalf("first Create error: %v", err)
	}
	_, err := svc.Create(Request{TaskKey: "same", TaskText: "docker ps"})
	if !errors.Is(err, ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	ticket, err := svc.Create(Request{TaskKey: "k", TaskText: "make deploy"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	first, applied, err := svc.Resolve(Resolution{TicketID: ticket.ID, Approved: false, ResolvedBy: "alice"})
	if err != nil || !applied {
		t.Fatalf("first Resolve applied=%v err=%v", applied, err)
	}
	if first.Status != StatusDenied {
		t.Fatalf("expected DENIED, got %s", first.Status)
	}

	second, applied, err := svc.Resolve(Resolution{TicketID: ticket.ID, Approved: true, ResolvedBy: "mallory"})
	if err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
	if applied {
		t.Fatal("expected second Resolve to report no-op")
	}
	if second.Status != StatusDenied || second.DecidedBy != "alice" {
		t.Fatalf("terminal ticket mutated: %+v", second)
	}
}

func TestAwaitCancelLeavesTicketPending(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, Config{Timeout: time.Hour, PollInterval: 5 * time.Millisecond})

	ticket, err := svc.Create(Request{TaskKey: "k", TaskText: "docker ps"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err = svc.Await(ctx, ticket.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	got, err := store.Ticket(ticket.ID)
	if err != nil {
		t.Fatalf("Ticket error: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected ticket to remain PENDING after cancel, got %s", got.Status)
	}
}

func TestExpireOverdue(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	stale, err := svc.Create(Request{TaskKey: "a", TaskText: "docker ps"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	svc.now = func() time.Time { return base.Add(time.Hour) }
	fresh, err := svc.Create(Request{TaskKey: "b", TaskText: "make build"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	expired, err := svc.ExpireOverdue()
	if err != nil {
		t.Fatalf("ExpireOverdue error: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != stale.ID {
		t.Fatalf("unexpected expired set: %+v", expired)
	}

	got, _ := store.Ticket(fresh.ID)
	if got.Status != StatusPending {
		t.Fatalf("fresh ticket should stay PENDING, got %s", got.Status)
	}
}

func TestConcurrentWaitsProgressIndependently(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, Config{Timeout: time.Second, PollInterval: 5 * time.Millisecond})

	slow, err := svc.Create(Request{TaskKey: "slow", TaskText: "sudo reboot"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	fast, err := svc.Create(Request{TaskKey: "fast", TaskText: "docker ps"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	fastDone := make(chan Outcome, 1)
	go func() {
		outcome, _, _ := svc.Await(context.Background(), fast.ID)
		fastDone <- outcome
	}()
	slowDone := make(chan Outcome, 1)
	go func() {
		outcome, _, _ := svc.Await(context.Background(), slow.ID)
		slowDone <- outcome
	}()

	if _, applied, err := svc.Resolve(Resolution{TicketID: fast.ID, Approved: true, ResolvedBy: "owner"}); err != nil || !applied {
		t.Fatalf("Resolve applied=%v err=%v", applied, err)
	}

	select {
	case outcome := <-fastDone:
		if outcome != OutcomeApproved {
			t.Fatalf("expected fast wait APPROVED, got %s", outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("fast wait stalled behind the slow one")
	}

	if _, applied, err := svc.Resolve(Resolution{TicketID: slow.ID, Approved: false, ResolvedBy: "owner"}); err != nil || !applied {
		t.Fatalf("Resolve applied=%v err=%v", applied, err)
	}
	if outcome := <-slowDone; outcome != OutcomeDenied {
		t.Fatalf("expected slow wait DENIED, got %s", outcome)
	}
}

func TestCreateConcurrentSameKeyYieldsOnePending(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Create(Request{TaskKey: "same", TaskText: "docker ps"})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		if !errors.Is(err, ErrDuplicatePending) {
			t.Fatalf("unexpected Create error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one ticket created, got %d", created)
	}

	pending, err := store.PendingTickets()
	if err != nil {
		t.Fatalf("PendingTickets: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending ticket, got %d", len(pending))
	}
}

func TestAwaitHonorsPersistedDeadline(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	ticket, err := svc.Create(Request{TaskKey: "late", TaskText: "docker ps"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// Entering the wait after the ticket's deadline must expire it at once
	// rather than grant a fresh timeout window.
	svc.now = func() time.Time { return ticket.ExpiresAt.Add(time.Millisecond) }

	outcome, resolved, err := svc.Await(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("Await error: %v", err)
	}
	if outcome != OutcomeTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", outcome)
	}
	if resolved.Status != StatusExpired {
		t.Fatalf("expected EXPIRED ticket, got %s", resolved.Status)
	}
}
