package approval

import (
	"context"
	"errors"
	"time"

	"github.com/akrambak/aegis-planner/internal/risk"
)

// Status is the lifecycle state of an approval ticket. A ticket moves from
// pending to exactly one terminal state and is never deleted.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDenied   Status = "DENIED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusExpired
}

// Outcome is what a waiting caller gets back. Timed-out waits are treated
// like denials for execution purposes.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeDenied   Outcome = "DENIED"
	OutcomeTimedOut Outcome = "TIMED_OUT"
)

// Ticket is a durable record of a human authorization request.
type Ticket struct {
	ID        string    `json:"id"`
	TaskKey   string    `json:"task_key"`
	TaskText  string    `json:"task_text"`
	RiskTier  risk.Tier `json:"risk_tier"`
	Reason    string    `json:"reason,omitempty"`
	Requester string    `json:"requester,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	DecidedAt time.Time `json:"decided_at,omitempty"`
	DecidedBy string    `json:"decided_by,omitempty"`
}

// Resolution is an inbound decision event from the reviewer channel.
// Repeated delivery of the same resolution must be a no-op.
type Resolution struct {
	TicketID   string `json:"ticket_id"`
	Approved   bool   `json:"approved"`
	ResolvedBy string `json:"resolved_by"`
}

var (
	// ErrDuplicatePending rejects a submission while an identical task
	// already has a pending ticket.
	ErrDuplicatePending = errors.New("approval: identical task already pending")

	// ErrNotFound reports an unknown ticket id.
	ErrNotFound = errors.New("approval: ticket not found")
)

// Store is the durable ticket set, owned by the audit log and injected
// here. ResolveTicket applies the single allowed mutation: a conditional
// pending-to-terminal transition that reports applied=false when the ticket
// was already terminal.
type Store interface {
	AppendTicket(t Ticket) error
	Ticket(id string) (Ticket, error)
	ResolveTicket(id string, status Status, decidedBy string) (Ticket, bool, error)
	PendingTickets() ([]Ticket, error)
}

// Notifier delivers an approval request to the reviewer channel.
// Fire-and-forget: delivery failure never aborts the wait.
type Notifier interface {
	NotifyApproval(ctx context.Context, t Ticket) error
}
