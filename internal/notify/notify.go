// Package notify delivers approval requests and failure alerts to external
// reviewer and alerting channels. Delivery is best-effort everywhere;
// callers log failures and move on.
package notify

import (
	"context"
	"time"

	"github.com/akrambak/aegis-planner/internal/approval"
)

// FailureAlert is the out-of-band notice sent when a dispatched task fails.
type FailureAlert struct {
	Task       string    `json:"task"`
	Error      string    `json:"error"`
	RunID      string    `json:"run_id"`
	Node       string    `json:"node"`
	ExecutedAt time.Time `json:"executed_at"`
}

// AlertNotifier delivers failure alerts.
type AlertNotifier interface {
	NotifyFailure(ctx context.Context, alert FailureAlert) error
}

// Nop discards both approval requests and failure alerts. Used when no
// channel is configured.
type Nop struct{}

func (Nop) NotifyApproval(context.Context, approval.Ticket) error { return nil }
func (Nop) NotifyFailure(context.Context, FailureAlert) error     { return nil }
