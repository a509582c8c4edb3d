package audit

import (
	"time"

	"github.com/akrambak/aegis-planner/internal/approval"
	"github.com/akrambak/aegis-planner/internal/risk"
	"github.com/akrambak/aegis-planner/internal/task"
)

// Status is the final outcome of one submission.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
	StatusBlocked Status = "BLOCKED"
)

// Record is the canonical audit row: exactly one per submission, written
// after the outcome is final, never mutated.
type Record struct {
	Task            task.Task        `json:"task"`
	TaskText        string           `json:"task_text"`
	Status          Status           `json:"status"`
	Result          string           `json:"result,omitempty"`
	Error           string           `json:"error,omitempty"`
	Requester       string           `json:"requester"`
	DryRun          bool             `json:"dry_run"`
	RiskTier        risk.Tier        `json:"risk_tier"`
	PolicyRule      string           `json:"policy_rule,omitempty"`
	ApprovalOutcome approval.Outcome `json:"approval_outcome,omitempty"`
	TicketID        string           `json:"ticket_id,omitempty"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	ExecutedAt      time.Time        `json:"executed_at"`
	ElapsedMS       int64            `json:"elapsed_ms"`
	RunID           string           `json:"run_id,omitempty"`
	Node            string           `json:"node,omitempty"`
}
